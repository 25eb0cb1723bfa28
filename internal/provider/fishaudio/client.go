// Package fishaudio wraps outbound calls to the Fish Audio voice-cloning and
// TTS service. Model management speaks JSON; synthesis, transcription and the
// live stream require MessagePack bodies.
package fishaudio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/charlesng35/voiceclone/pkg/metrics"
)

const (
	defaultBaseURL = "https://api.fish.audio"
	defaultWSURL   = "wss://api.fish.audio"
	defaultBackend = "speech-1.6"
	defaultTimeout = 60 * time.Second

	contentTypeMsgpack = "application/msgpack"

	// errorBodyLimit caps how much of a failure response we read while
	// looking for a usable message.
	errorBodyLimit = 64 << 10
)

// Config describes how to reach the provider.
type Config struct {
	BaseURL string
	WSURL   string
	APIKey  string
	Backend string
	Timeout time.Duration
}

// Client is a Fish Audio API client. All methods honour the request context
// in addition to the configured client timeout.
type Client struct {
	httpClient *http.Client
	baseURL    string
	wsURL      string
	apiKey     string
	backend    string
}

// New constructs a provider client. The API key is required.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("fishaudio: api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	wsURL := strings.TrimRight(strings.TrimSpace(cfg.WSURL), "/")
	if wsURL == "" {
		wsURL = defaultWSURL
	}

	backend := strings.TrimSpace(cfg.Backend)
	if backend == "" {
		backend = defaultBackend
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		wsURL:      wsURL,
		apiKey:     apiKey,
		backend:    backend,
	}, nil
}

// CreateModel submits audio samples for voice-model training and returns the
// provider's model record. A 2xx response lacking a model identifier is
// treated as a failure: persisting an empty remote handle would corrupt the
// local registry.
func (c *Client) CreateModel(ctx context.Context, input CreateModelInput) (*Model, error) {
	if len(input.Voices) == 0 {
		return nil, &Error{Message: "at least one audio sample is required"}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	visibility := input.Visibility
	if visibility == "" {
		visibility = defaultVisibility
	}
	modelType := input.Type
	if modelType == "" {
		modelType = defaultModelType
	}
	trainMode := input.TrainMode
	if trainMode == "" {
		trainMode = defaultTrainMode
	}

	fields := [][2]string{
		{"visibility", visibility},
		{"type", modelType},
		{"title", input.Title},
		{"train_mode", trainMode},
		{"enhance_audio_quality", strconv.FormatBool(input.EnhanceAudioQuality)},
	}
	if input.Description != "" {
		fields = append(fields, [2]string{"description", input.Description})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, fmt.Errorf("fishaudio: write field %s: %w", field[0], err)
		}
	}

	// One reference text per audio payload, padded with the generic default.
	for i, voice := range input.Voices {
		text := defaultReferenceText
		if i < len(input.Texts) && strings.TrimSpace(input.Texts[i]) != "" {
			text = input.Texts[i]
		}
		if err := writer.WriteField("texts", text); err != nil {
			return nil, fmt.Errorf("fishaudio: write texts field: %w", err)
		}

		part, err := writer.CreateFormFile("voices", fmt.Sprintf("voice-%d.audio", i+1))
		if err != nil {
			return nil, fmt.Errorf("fishaudio: create voices part: %w", err)
		}
		if _, err := part.Write(voice); err != nil {
			return nil, fmt.Errorf("fishaudio: write voice payload: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("fishaudio: finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/model", body)
	if err != nil {
		return nil, fmt.Errorf("fishaudio: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var model Model
	if err := c.doJSON(req, "create_model", &model); err != nil {
		return nil, err
	}

	if strings.TrimSpace(model.ID) == "" {
		return nil, &Error{Message: "provider returned a model without an identifier"}
	}

	return &model, nil
}

// Synthesize converts text to speech using a previously trained model. The
// request is MessagePack encoded; the response is a raw audio byte stream
// with no envelope.
func (c *Client) Synthesize(ctx context.Context, request TTSRequest) ([]byte, error) {
	payload, err := msgpack.Marshal(request.withDefaults())
	if err != nil {
		return nil, fmt.Errorf("fishaudio: encode tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("fishaudio: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentTypeMsgpack)
	req.Header.Set("Model", c.backend)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	observe("synthesize", start, err)
	if err != nil {
		return nil, &Error{Message: "synthesis request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Message: "reading audio stream failed: " + err.Error()}
	}
	if len(audio) == 0 {
		return nil, &Error{Message: "provider returned an empty audio stream"}
	}

	return audio, nil
}

// ListModels fetches one page of the account's own models.
func (c *Client) ListModels(ctx context.Context, pageNumber, pageSize int) (*ModelPage, error) {
	if pageNumber <= 0 {
		pageNumber = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	query := url.Values{}
	query.Set("page_number", strconv.Itoa(pageNumber))
	query.Set("page_size", strconv.Itoa(pageSize))
	query.Set("self", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/model?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fishaudio: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var page ModelPage
	if err := c.doJSON(req, "list_models", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetModel fetches a single model record.
func (c *Client) GetModel(ctx context.Context, id string) (*Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/model/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("fishaudio: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var model Model
	if err := c.doJSON(req, "get_model", &model); err != nil {
		return nil, err
	}
	return &model, nil
}

// DeleteModel removes a trained model from the provider.
func (c *Client) DeleteModel(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/model/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("fishaudio: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.doJSON(req, "delete_model", nil)
}

// Transcribe runs speech recognition over an audio payload. The request is
// MessagePack encoded; the response is JSON.
func (c *Client) Transcribe(ctx context.Context, request ASRRequest) (*ASRResponse, error) {
	if len(request.Audio) == 0 {
		return nil, &Error{Message: "audio payload is required"}
	}

	payload, err := msgpack.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("fishaudio: encode asr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/asr", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("fishaudio: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentTypeMsgpack)

	var result ASRResponse
	if err := c.doJSON(req, "transcribe", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Credits reports the account's remaining API credit.
func (c *Client) Credits(ctx context.Context) (*CreditBalance, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/wallet/self/api-credit", nil)
	if err != nil {
		return nil, fmt.Errorf("fishaudio: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var balance CreditBalance
	if err := c.doJSON(req, "credits", &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// doJSON executes the request, decodes a JSON response into out (when out is
// non-nil), and normalizes every failure into *Error.
func (c *Client) doJSON(req *http.Request, operation string, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	observe(operation, start, err)
	if err != nil {
		return &Error{Message: operation + " request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Status: resp.StatusCode, Message: "malformed provider response: " + err.Error()}
	}
	return nil
}

// parseError extracts a short message from a non-2xx response, swallowing the
// provider-specific error envelope.
func parseError(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))

	var envelope struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	message := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Message != "":
			message = envelope.Message
		case envelope.Detail != "":
			message = envelope.Detail
		case envelope.Error != "":
			message = envelope.Error
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	if message == "" {
		message = "request rejected"
	}

	return &Error{Status: resp.StatusCode, Message: message}
}

func observe(operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.ProviderCalls.WithLabelValues(operation, result).Inc()
	metrics.ProviderLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
