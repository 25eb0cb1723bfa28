package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/voiceclone/internal/audio"
	"github.com/charlesng35/voiceclone/internal/models"
	"github.com/charlesng35/voiceclone/internal/services"
	apperrors "github.com/charlesng35/voiceclone/pkg/errors"
	"github.com/charlesng35/voiceclone/pkg/logger"
	"github.com/charlesng35/voiceclone/pkg/response"
	"github.com/charlesng35/voiceclone/pkg/sanitize"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 200
)

// ModelHandler serves the voice-model lifecycle routes.
type ModelHandler struct {
	voices    *services.VoiceService
	store     *services.ModelService
	uploadDir string
	maxBytes  int64
}

// NewModelHandler constructs a ModelHandler instance.
func NewModelHandler(voices *services.VoiceService, store *services.ModelService, uploadDir string, maxBytes int64) *ModelHandler {
	return &ModelHandler{
		voices:    voices,
		store:     store,
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
	}
}

type modelDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	State       string `json:"state,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func mapModel(model *models.VoiceModel) modelDTO {
	createdAt := ""
	if !model.CreatedAt.IsZero() {
		createdAt = model.CreatedAt.Format(time.RFC3339)
	}
	return modelDTO{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		State:       model.State,
		CreatedAt:   createdAt,
	}
}

type createModelForm struct {
	Name        string `validate:"required,min=1,max=100"`
	Description string `validate:"omitempty,max=200"`
}

// Create handles the multipart voice-cloning request. Field values are
// sanitized before validation so a payload that survives only because of its
// markup is rejected on length like any other.
func (h *ModelHandler) Create(c *gin.Context) {
	samplePath, cleanup, ok := h.receiveAudioUpload(c)
	if !ok {
		return
	}
	defer cleanup()

	form := createModelForm{
		Name:        sanitize.Text(c.PostForm("name"), maxTitleLength),
		Description: sanitize.Text(c.PostForm("description"), maxDescriptionLength),
	}
	if !validatePayload(c, &form) {
		return
	}

	if _, err := audio.ValidateFile(samplePath); err != nil {
		response.Error(c, apperrors.NewValidation("uploaded file is not a supported audio format"))
		return
	}

	sample, err := os.ReadFile(samplePath)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "failed to read uploaded audio"))
		return
	}

	model, err := h.voices.CloneVoice(requestContext(c), services.CloneVoiceInput{
		Title:       form.Name,
		Description: form.Description,
		Voices:      [][]byte{sample},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"model":       mapModel(model),
		"cloneStatus": model.State,
	})
}

// List returns every registered model, newest first.
func (h *ModelHandler) List(c *gin.Context) {
	records, err := h.store.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	dtos := make([]modelDTO, 0, len(records))
	for i := range records {
		dtos = append(dtos, mapModel(&records[i]))
	}
	response.SuccessList(c, http.StatusOK, dtos, len(dtos))
}

// Get returns a single model by local identifier.
func (h *ModelHandler) Get(c *gin.Context) {
	model, err := h.store.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, mapModel(model))
}

type updateModelRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=200"`
}

// Update renames or re-describes a model.
func (h *ModelHandler) Update(c *gin.Context) {
	var req updateModelRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.UpdateModelInput{}
	if req.Name != nil {
		name := sanitize.Text(*req.Name, maxTitleLength)
		input.Title = &name
	}
	if req.Description != nil {
		description := sanitize.Text(*req.Description, maxDescriptionLength)
		input.Description = &description
	}

	model, err := h.store.Update(requestContext(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, mapModel(model))
}

// Delete removes a model locally and best-effort remotely.
func (h *ModelHandler) Delete(c *gin.Context) {
	model, err := h.voices.DeleteVoice(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": model.ID})
}

// receiveAudioUpload enforces the size cap while parsing the multipart body,
// checks the declared content type, and spools the audio part to a temp file
// under the upload directory. The returned cleanup always removes the file.
func (h *ModelHandler) receiveAudioUpload(c *gin.Context) (string, func(), bool) {
	return receiveAudioUpload(c, h.uploadDir, h.maxBytes)
}

func receiveAudioUpload(c *gin.Context, uploadDir string, maxBytes int64) (string, func(), bool) {
	noop := func() {}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperrors.ErrPayloadTooLarge)
		} else {
			response.Error(c, apperrors.NewValidation("an audio file upload is required"))
		}
		return "", noop, false
	}
	defer file.Close()

	if contentType := header.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "audio/") {
		response.Error(c, apperrors.NewValidation("uploaded file must declare an audio content type"))
		return "", noop, false
	}

	// The declared name is client input; it only ever appears sanitized, in
	// the log. Stored files get server-generated names.
	logger.Debug("received audio upload",
		zap.String("file", sanitize.Filename(header.Filename)),
		zap.Int64("size", header.Size),
	)

	path, err := spoolUpload(file, uploadDir)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperrors.ErrPayloadTooLarge)
		} else {
			response.Error(c, apperrors.Wrap(err, "failed to store uploaded audio"))
		}
		return "", noop, false
	}

	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove temp upload: " + sanitize.ErrorMessage(err))
		}
	}
	return path, cleanup, true
}

// spoolUpload writes the multipart part to a temp file with a locally
// generated name; the client's filename never reaches the filesystem.
func spoolUpload(file multipart.File, uploadDir string) (string, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(uploadDir, "upload-"+uuid.NewString())
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
