package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/charlesng35/voiceclone/internal/models"
	"github.com/charlesng35/voiceclone/internal/provider/fishaudio"
	apperrors "github.com/charlesng35/voiceclone/pkg/errors"
	"github.com/charlesng35/voiceclone/pkg/metrics"
	"github.com/charlesng35/voiceclone/pkg/sanitize"
)

// VoiceProvider is the slice of the remote voice API the service depends on.
// *fishaudio.Client satisfies it; tests substitute a fake.
type VoiceProvider interface {
	CreateModel(ctx context.Context, input fishaudio.CreateModelInput) (*fishaudio.Model, error)
	Synthesize(ctx context.Context, request fishaudio.TTSRequest) ([]byte, error)
	DeleteModel(ctx context.Context, id string) error
	Transcribe(ctx context.Context, request fishaudio.ASRRequest) (*fishaudio.ASRResponse, error)
	Credits(ctx context.Context) (*fishaudio.CreditBalance, error)
}

// CloneVoiceInput carries everything needed to train a new voice.
type CloneVoiceInput struct {
	Title       string
	Description string
	Texts       []string
	Voices      [][]byte
}

// SynthesizeInput describes one text-to-speech request against a stored voice.
type SynthesizeInput struct {
	ModelKey    string
	Text        string
	Format      string
	Speed       float64
	Temperature float64
	TopP        float64
}

// SynthesisResult reports where the rendered audio landed.
type SynthesisResult struct {
	FileName string
	Format   string
	Bytes    int
	Model    *models.VoiceModel
}

// VoiceService composes the remote provider with the local model registry
// and the audio output directory. All provider failures surface as upstream
// errors; provider message text never reaches a caller unfiltered.
type VoiceService struct {
	provider VoiceProvider
	store    *ModelService
	audioDir string
}

// NewVoiceService constructs a VoiceService instance.
func NewVoiceService(provider VoiceProvider, store *ModelService, audioDir string) (*VoiceService, error) {
	if provider == nil {
		return nil, errors.New("voice service: provider is required")
	}
	if store == nil {
		return nil, errors.New("voice service: model store is required")
	}
	if strings.TrimSpace(audioDir) == "" {
		return nil, errors.New("voice service: audio directory is required")
	}
	return &VoiceService{
		provider: provider,
		store:    store,
		audioDir: audioDir,
	}, nil
}

// CloneVoice trains a new voice with the provider and registers it locally.
// The title is checked before the provider is paid a training call; the
// database unique index catches the remaining race window.
func (s *VoiceService) CloneVoice(ctx context.Context, input CloneVoiceInput) (*models.VoiceModel, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidation("model title is required")
	}
	if len(input.Voices) == 0 {
		return nil, apperrors.NewValidation("at least one audio sample is required")
	}

	exists, err := s.store.TitleExists(ctx, title)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateTitle
	}

	remote, err := s.provider.CreateModel(ctx, fishaudio.CreateModelInput{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Voices:      input.Voices,
		Texts:       input.Texts,
	})
	if err != nil {
		return nil, upstreamError("voice training failed", err)
	}

	meta, _ := json.Marshal(remote)

	model, err := s.store.Create(ctx, CreateModelInput{
		Title:         title,
		Description:   input.Description,
		RemoteModelID: remote.ID,
		State:         remote.State,
		ProviderMeta:  meta,
	})
	if err != nil {
		return nil, err
	}
	return model, nil
}

// Synthesize renders text with a stored voice and writes the audio under the
// output directory as "<uuid>.<ext>". The file name is always generated
// locally, so caller-controlled input never reaches the filesystem.
func (s *VoiceService) Synthesize(ctx context.Context, input SynthesizeInput) (*SynthesisResult, error) {
	ctx = ensureContext(ctx)

	model, err := s.store.Resolve(ctx, input.ModelKey)
	if err != nil {
		return nil, err
	}
	if !model.Ready() {
		return nil, apperrors.NewValidation("model is not ready for synthesis")
	}

	format := fishaudio.FormatMP3
	if input.Format != "" {
		format = input.Format
	}

	request := fishaudio.TTSRequest{
		Text:        input.Text,
		ReferenceID: model.RemoteModelID,
		Format:      format,
		Temperature: input.Temperature,
		TopP:        input.TopP,
	}
	if input.Speed > 0 {
		request.Prosody = &fishaudio.Prosody{Speed: input.Speed, Volume: 0}
	}

	audio, err := s.provider.Synthesize(ctx, request)
	if err != nil {
		return nil, upstreamError("voice synthesis failed", err)
	}

	if err := os.MkdirAll(s.audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare audio directory: %w", err)
	}

	fileName := uuid.NewString() + "." + format
	if err := os.WriteFile(filepath.Join(s.audioDir, fileName), audio, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}
	metrics.SynthesizedBytes.Add(float64(len(audio)))

	return &SynthesisResult{
		FileName: fileName,
		Format:   format,
		Bytes:    len(audio),
		Model:    model,
	}, nil
}

// DeleteVoice removes a model locally and best-effort deletes the remote
// copy. A provider failure does not resurrect the local row; the remote
// model simply lingers on the account.
func (s *VoiceService) DeleteVoice(ctx context.Context, id string) (*models.VoiceModel, error) {
	ctx = ensureContext(ctx)

	model, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if model.RemoteModelID != "" {
		_ = s.provider.DeleteModel(ctx, model.RemoteModelID)
	}
	return model, nil
}

// Transcribe runs speech recognition on an uploaded audio payload.
func (s *VoiceService) Transcribe(ctx context.Context, audio []byte, language string) (*fishaudio.ASRResponse, error) {
	ctx = ensureContext(ctx)

	result, err := s.provider.Transcribe(ctx, fishaudio.ASRRequest{
		Audio:    audio,
		Language: strings.TrimSpace(language),
	})
	if err != nil {
		return nil, upstreamError("transcription failed", err)
	}
	return result, nil
}

// Credits reports the provider account balance.
func (s *VoiceService) Credits(ctx context.Context) (*fishaudio.CreditBalance, error) {
	ctx = ensureContext(ctx)

	balance, err := s.provider.Credits(ctx)
	if err != nil {
		return nil, upstreamError("credit lookup failed", err)
	}
	return balance, nil
}

// upstreamError wraps a provider failure as a 502 with a sanitized summary.
// The raw provider error stays on the internal side for logging only.
func upstreamError(summary string, err error) *apperrors.AppError {
	var provErr *fishaudio.Error
	if errors.As(err, &provErr) && provErr.Message != "" {
		summary = summary + ": " + sanitize.ErrorMessage(provErr)
	}
	return apperrors.NewUpstream(summary, err)
}
