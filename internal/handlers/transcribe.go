package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/voiceclone/internal/audio"
	"github.com/charlesng35/voiceclone/internal/services"
	apperrors "github.com/charlesng35/voiceclone/pkg/errors"
	"github.com/charlesng35/voiceclone/pkg/response"
	"github.com/charlesng35/voiceclone/pkg/sanitize"
)

// TranscribeHandler proxies speech recognition for uploaded audio.
type TranscribeHandler struct {
	voices    *services.VoiceService
	uploadDir string
	maxBytes  int64
}

// NewTranscribeHandler constructs a TranscribeHandler instance.
func NewTranscribeHandler(voices *services.VoiceService, uploadDir string, maxBytes int64) *TranscribeHandler {
	return &TranscribeHandler{
		voices:    voices,
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
	}
}

// Transcribe accepts a multipart audio upload and returns the recognized text.
func (h *TranscribeHandler) Transcribe(c *gin.Context) {
	samplePath, cleanup, ok := receiveAudioUpload(c, h.uploadDir, h.maxBytes)
	if !ok {
		return
	}
	defer cleanup()

	if _, err := audio.ValidateFile(samplePath); err != nil {
		response.Error(c, apperrors.NewValidation("uploaded file is not a supported audio format"))
		return
	}

	sample, err := os.ReadFile(samplePath)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "failed to read uploaded audio"))
		return
	}

	language := sanitize.Text(c.PostForm("language"), 16)

	result, err := h.voices.Transcribe(requestContext(c), sample, language)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"text":     result.Text,
		"duration": result.Duration,
		"segments": result.Segments,
	})
}
