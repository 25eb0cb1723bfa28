package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/voiceclone/internal/services"
	apperrors "github.com/charlesng35/voiceclone/pkg/errors"
	"github.com/charlesng35/voiceclone/pkg/response"
	"github.com/charlesng35/voiceclone/pkg/sanitize"
)

const maxSynthesisTextLength = 5000

// TTSHandler serves the text-to-speech route.
type TTSHandler struct {
	voices *services.VoiceService
}

// NewTTSHandler constructs a TTSHandler instance.
func NewTTSHandler(voices *services.VoiceService) *TTSHandler {
	return &TTSHandler{voices: voices}
}

type ttsRequest struct {
	Text        string  `json:"text" validate:"required,min=1,max=5000"`
	ModelID     string  `json:"modelId"`
	ModelName   string  `json:"modelName"`
	Format      string  `json:"format" validate:"omitempty,oneof=wav mp3"`
	Speed       float64 `json:"speed" validate:"omitempty,gt=0,lte=3"`
	Temperature float64 `json:"temperature" validate:"omitempty,gt=0,lte=1"`
	TopP        float64 `json:"topP" validate:"omitempty,gt=0,lte=1"`
}

// Synthesize renders text with a stored voice and returns the URL of the
// generated audio file.
func (h *TTSHandler) Synthesize(c *gin.Context) {
	var req ttsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	modelKey := strings.TrimSpace(req.ModelID)
	if modelKey == "" {
		modelKey = strings.TrimSpace(req.ModelName)
	}
	if modelKey == "" {
		response.Error(c, apperrors.NewValidation("either modelId or modelName is required"))
		return
	}

	text := sanitize.Text(req.Text, maxSynthesisTextLength)
	if text == "" {
		response.Error(c, apperrors.NewValidation("text is empty after sanitization"))
		return
	}

	result, err := h.voices.Synthesize(requestContext(c), services.SynthesizeInput{
		ModelKey:    modelKey,
		Text:        text,
		Format:      req.Format,
		Speed:       req.Speed,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"audioUrl": "/audio/" + result.FileName,
		"format":   result.Format,
		"text":     text,
		"modelUsed": gin.H{
			"id":    result.Model.ID,
			"title": result.Model.Title,
		},
	})
}
