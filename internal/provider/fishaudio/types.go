package fishaudio

import (
	"fmt"
	"time"
)

// Output formats accepted by the synthesis endpoint.
const (
	FormatWAV = "wav"
	FormatMP3 = "mp3"
	FormatPCM = "pcm"
)

// Latency modes accepted by the synthesis endpoint.
const (
	LatencyNormal   = "normal"
	LatencyBalanced = "balanced"
)

// Model training defaults sent with create-model calls.
const (
	defaultVisibility = "private"
	defaultModelType  = "tts"
	defaultTrainMode  = "fast"

	// defaultReferenceText is supplied once per audio payload; the system
	// never collects per-sample transcripts from the operator.
	defaultReferenceText = "Reference audio for voice cloning."
)

// Prosody carries speed and volume controls for synthesis.
type Prosody struct {
	Speed  float64 `msgpack:"speed" json:"speed"`
	Volume float64 `msgpack:"volume" json:"volume"`
}

// ReferenceAudio pairs an audio payload with its transcript for inline
// voice-reference synthesis.
type ReferenceAudio struct {
	Audio []byte `msgpack:"audio" json:"audio"`
	Text  string `msgpack:"text" json:"text"`
}

// TTSRequest is the synthesis request body. The provider's /v1/tts endpoint
// requires MessagePack encoding, unlike the JSON model-management endpoints.
type TTSRequest struct {
	Text        string           `msgpack:"text" json:"text"`
	ChunkLength int              `msgpack:"chunk_length" json:"chunk_length"`
	Format      string           `msgpack:"format" json:"format"`
	MP3Bitrate  int              `msgpack:"mp3_bitrate" json:"mp3_bitrate"`
	References  []ReferenceAudio `msgpack:"references" json:"references"`
	ReferenceID string           `msgpack:"reference_id,omitempty" json:"reference_id,omitempty"`
	Normalize   bool             `msgpack:"normalize" json:"normalize"`
	Latency     string           `msgpack:"latency" json:"latency"`
	Temperature float64          `msgpack:"temperature,omitempty" json:"temperature,omitempty"`
	TopP        float64          `msgpack:"top_p,omitempty" json:"top_p,omitempty"`
	Prosody     *Prosody         `msgpack:"prosody,omitempty" json:"prosody,omitempty"`
}

// withDefaults fills the provider's documented defaults onto a request.
func (r TTSRequest) withDefaults() TTSRequest {
	if r.ChunkLength == 0 {
		r.ChunkLength = 200
	}
	if r.ChunkLength < 100 {
		r.ChunkLength = 100
	}
	if r.ChunkLength > 300 {
		r.ChunkLength = 300
	}
	if r.Format == "" {
		r.Format = FormatMP3
	}
	if r.MP3Bitrate == 0 {
		r.MP3Bitrate = 128
	}
	if r.Latency == "" {
		r.Latency = LatencyNormal
	}
	if r.References == nil {
		r.References = []ReferenceAudio{}
	}
	return r
}

// CreateModelInput describes a voice-model training request. Voices carries
// one audio byte payload per sample; Texts, when shorter than Voices, is
// padded with the generic default reference text.
type CreateModelInput struct {
	Title       string
	Description string
	Voices      [][]byte
	Texts       []string

	Visibility string
	Type       string
	TrainMode  string

	EnhanceAudioQuality bool
}

// Model is the provider's model record as returned by the JSON management
// endpoints.
type Model struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       string    `json:"state"`
	Visibility  string    `json:"visibility"`
	CreatedAt   time.Time `json:"created_at"`
}

// ModelPage is one page of a model listing.
type ModelPage struct {
	Items []Model `json:"items"`
	Total int     `json:"total"`
}

// ASRRequest is the transcription request body, MessagePack encoded.
type ASRRequest struct {
	Audio            []byte `msgpack:"audio" json:"-"`
	Language         string `msgpack:"language,omitempty" json:"language,omitempty"`
	IgnoreTimestamps bool   `msgpack:"ignore_timestamps" json:"ignore_timestamps"`
}

// ASRSegment is one timestamped span of a transcription.
type ASRSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ASRResponse is the JSON transcription result.
type ASRResponse struct {
	Text     string       `json:"text"`
	Duration float64      `json:"duration"`
	Segments []ASRSegment `json:"segments"`
}

// CreditBalance reports the account's remaining API credit.
type CreditBalance struct {
	Credit        float64 `json:"credit"`
	HasFreeCredit bool    `json:"has_free_credit"`
}

// Error is the normalized shape of every provider failure: a transport
// status and a human-readable message with the provider's error envelope
// already swallowed.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Status != 0 {
		return fmt.Sprintf("fishaudio: %s (status %d)", e.Message, e.Status)
	}
	return "fishaudio: " + e.Message
}
