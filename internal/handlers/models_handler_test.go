package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/voiceclone/internal/provider/fishaudio"
	"github.com/charlesng35/voiceclone/internal/services"
)

func TestCreateModelHappyPath(t *testing.T) {
	env := newTestEnv(t)

	req := multipartUpload(t, "/api/create-model", map[string]string{
		"name":        "Narrator",
		"description": "calm narration voice",
	}, "audio", "sample.wav", "audio/wav", wavSample)

	rec, body := env.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, body.Success)

	data := body.Data.(map[string]any)
	require.Equal(t, "trained", data["cloneStatus"])
	model := data["model"].(map[string]any)
	require.Equal(t, "Narrator", model["title"])
	require.NotEmpty(t, model["id"])

	stored, err := env.store.Resolve(context.Background(), "Narrator")
	require.NoError(t, err)
	require.Equal(t, "remote-1", stored.RemoteModelID)

	// The temp upload is removed once the pipeline completes.
	entries, err := os.ReadDir(env.uploadDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCreateModelIgnoresDeclaredFilename(t *testing.T) {
	env := newTestEnv(t)

	// The declared name never influences where the upload lands; files on
	// disk always carry server-generated names.
	req := multipartUpload(t, "/api/create-model", map[string]string{
		"name": "Narrator",
	}, "audio", "../../escape.wav", "audio/wav", wavSample)

	rec, body := env.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, body.Success)

	entries, err := os.ReadDir(env.uploadDir)
	require.NoError(t, err)
	require.Empty(t, entries)

	parent, err := os.ReadDir(filepath.Dir(env.uploadDir))
	require.NoError(t, err)
	for _, entry := range parent {
		require.NotEqual(t, "escape.wav", entry.Name())
	}
}

func TestCreateModelRejectsNonAudioPayload(t *testing.T) {
	env := newTestEnv(t)

	req := multipartUpload(t, "/api/create-model", map[string]string{
		"name": "Narrator",
	}, "audio", "sample.wav", "audio/wav", []byte("<html>not audio at all</html>"))

	rec, body := env.do(t, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, body.Success)
	require.Equal(t, "VALIDATION_ERROR", body.Error)
	require.Zero(t, env.provider.createCalls)

	entries, err := os.ReadDir(env.uploadDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCreateModelRejectsNonAudioContentType(t *testing.T) {
	env := newTestEnv(t)

	req := multipartUpload(t, "/api/create-model", map[string]string{
		"name": "Narrator",
	}, "audio", "sample.txt", "text/plain", wavSample)

	rec, body := env.do(t, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", body.Error)
	require.Zero(t, env.provider.createCalls)
}

func TestCreateModelRequiresAudioPart(t *testing.T) {
	env := newTestEnv(t)

	req := multipartUpload(t, "/api/create-model", map[string]string{
		"name": "Narrator",
	}, "", "", "", nil)

	rec, _ := env.do(t, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateModelValidationReportsAllViolations(t *testing.T) {
	env := newTestEnv(t)

	longDescription := make([]byte, 300)
	for i := range longDescription {
		longDescription[i] = 'd'
	}

	req := multipartUpload(t, "/api/create-model", map[string]string{
		"name":        "",
		"description": string(longDescription),
	}, "audio", "sample.wav", "audio/wav", wavSample)

	rec, body := env.do(t, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", body.Error)
	require.Len(t, body.Details, 1)
	// Name fails required; the description is clamped by the sanitizer
	// before validation runs, so only one violation remains.
	require.Contains(t, body.Details[0], "required")
	require.Zero(t, env.provider.createCalls)
}

func TestCreateModelSanitizesName(t *testing.T) {
	env := newTestEnv(t)

	req := multipartUpload(t, "/api/create-model", map[string]string{
		"name": `Narrator<script>alert("x")</script>`,
	}, "audio", "sample.wav", "audio/wav", wavSample)

	rec, body := env.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	data := body.Data.(map[string]any)
	model := data["model"].(map[string]any)
	require.Equal(t, "Narrator", model["title"])
}

func TestCreateModelDuplicateTitleConflict(t *testing.T) {
	env := newTestEnv(t)

	first := multipartUpload(t, "/api/create-model", map[string]string{"name": "Narrator"},
		"audio", "sample.wav", "audio/wav", wavSample)
	rec, _ := env.do(t, first)
	require.Equal(t, http.StatusCreated, rec.Code)

	second := multipartUpload(t, "/api/create-model", map[string]string{"name": "Narrator"},
		"audio", "sample.wav", "audio/wav", wavSample)
	rec, body := env.do(t, second)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "CONFLICT", body.Error)
	// Training is paid; the duplicate never reaches the provider.
	require.Equal(t, 1, env.provider.createCalls)
}

func TestCreateModelProviderFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t)
	env.provider.createModelFn = func(fishaudio.CreateModelInput) (*fishaudio.Model, error) {
		return nil, &fishaudio.Error{Status: 500, Message: "training backend unavailable"}
	}

	req := multipartUpload(t, "/api/create-model", map[string]string{"name": "Narrator"},
		"audio", "sample.wav", "audio/wav", wavSample)

	rec, body := env.do(t, req)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "UPSTREAM_ERROR", body.Error)

	records, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestListModels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, title := range []string{"Alpha", "Beta"} {
		_, err := env.store.Create(ctx, services.CreateModelInput{Title: title, RemoteModelID: "remote-" + title})
		require.NoError(t, err)
	}

	rec, body := env.do(t, jsonRequest(t, http.MethodGet, "/api/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)
	require.NotNil(t, body.Count)
	require.Equal(t, 2, *body.Count)
}

func TestGetModelNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, jsonRequest(t, http.MethodGet, "/api/models/missing-id", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", body.Error)
}

func TestUpdateModelRename(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.store.Create(ctx, services.CreateModelInput{Title: "Narrator", RemoteModelID: "remote-1"})
	require.NoError(t, err)
	_, err = env.store.Create(ctx, services.CreateModelInput{Title: "Announcer", RemoteModelID: "remote-2"})
	require.NoError(t, err)

	rec, body := env.do(t, jsonRequest(t, http.MethodPatch, "/api/models/"+created.ID,
		map[string]string{"name": "Storyteller"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var dto modelDTO
	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &dto))
	require.Equal(t, "Storyteller", dto.Title)

	rec, body = env.do(t, jsonRequest(t, http.MethodPatch, "/api/models/"+created.ID,
		map[string]string{"name": "Announcer"}))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "CONFLICT", body.Error)
}

func TestDeleteModel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.store.Create(ctx, services.CreateModelInput{Title: "Narrator", RemoteModelID: "remote-1"})
	require.NoError(t, err)

	rec, body := env.do(t, jsonRequest(t, http.MethodDelete, "/api/models/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)

	rec, _ = env.do(t, jsonRequest(t, http.MethodDelete, "/api/models/"+created.ID, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
