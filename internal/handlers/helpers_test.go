package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/voiceclone/internal/database/testutil"
	"github.com/charlesng35/voiceclone/internal/middleware"
	"github.com/charlesng35/voiceclone/internal/provider/fishaudio"
	"github.com/charlesng35/voiceclone/internal/services"
	"github.com/charlesng35/voiceclone/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// wavSample is a minimal payload carrying a RIFF magic number.
var wavSample = append([]byte("RIFF"), []byte(">>>>WAVEfmt ")...)

// stubProvider answers provider calls with canned data and records inputs.
type stubProvider struct {
	createModelFn func(fishaudio.CreateModelInput) (*fishaudio.Model, error)
	synthesizeFn  func(fishaudio.TTSRequest) ([]byte, error)

	createCalls int
}

func (s *stubProvider) CreateModel(_ context.Context, input fishaudio.CreateModelInput) (*fishaudio.Model, error) {
	s.createCalls++
	if s.createModelFn != nil {
		return s.createModelFn(input)
	}
	return &fishaudio.Model{ID: "remote-1", Title: input.Title, State: "trained"}, nil
}

func (s *stubProvider) Synthesize(_ context.Context, request fishaudio.TTSRequest) ([]byte, error) {
	if s.synthesizeFn != nil {
		return s.synthesizeFn(request)
	}
	return []byte{0xFF, 0xFB, 0x01, 0x02}, nil
}

func (s *stubProvider) DeleteModel(context.Context, string) error { return nil }

func (s *stubProvider) Transcribe(_ context.Context, request fishaudio.ASRRequest) (*fishaudio.ASRResponse, error) {
	return &fishaudio.ASRResponse{Text: "recognized text", Duration: 2.5}, nil
}

func (s *stubProvider) Credits(context.Context) (*fishaudio.CreditBalance, error) {
	return &fishaudio.CreditBalance{Credit: 42}, nil
}

// testEnv wires handlers onto a router the way the API package does, with an
// in-memory database and a stubbed provider.
type testEnv struct {
	router    *gin.Engine
	provider  *stubProvider
	store     *services.ModelService
	voices    *services.VoiceService
	db        *gorm.DB
	uploadDir string
	audioDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	provider := &stubProvider{}
	db := testutil.MustOpenTestDB(t)
	store, err := services.NewModelService(db)
	require.NoError(t, err)

	audioDir := t.TempDir()
	voices, err := services.NewVoiceService(provider, store, audioDir)
	require.NoError(t, err)

	uploadDir := t.TempDir()
	const maxUpload = 1 << 20

	modelHandler := NewModelHandler(voices, store, uploadDir, maxUpload)
	ttsHandler := NewTTSHandler(voices)
	transcribeHandler := NewTranscribeHandler(voices, uploadDir, maxUpload)
	creditsHandler := NewCreditsHandler(voices)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.POST("/api/create-model", modelHandler.Create)
	router.GET("/api/models", modelHandler.List)
	router.GET("/api/models/:id", modelHandler.Get)
	router.PATCH("/api/models/:id", modelHandler.Update)
	router.DELETE("/api/models/:id", modelHandler.Delete)
	router.POST("/api/tts", ttsHandler.Synthesize)
	router.POST("/api/transcribe", transcribeHandler.Transcribe)
	router.GET("/api/credits", creditsHandler.Credits)

	return &testEnv{
		router:    router,
		provider:  provider,
		store:     store,
		voices:    voices,
		db:        db,
		uploadDir: uploadDir,
		audioDir:  audioDir,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var body response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

// multipartUpload builds a multipart form with an optional audio part.
func multipartUpload(t *testing.T, target string, fields map[string]string, fileField, fileName, contentType string, payload []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileField != "" {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="` + fileField + `"; filename="` + fileName + `"`}
		header["Content-Type"] = []string{contentType}
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(payload)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}
