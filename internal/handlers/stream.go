package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/voiceclone/internal/provider/fishaudio"
	"github.com/charlesng35/voiceclone/internal/services"
	apperrors "github.com/charlesng35/voiceclone/pkg/errors"
	"github.com/charlesng35/voiceclone/pkg/logger"
	"github.com/charlesng35/voiceclone/pkg/response"
	"github.com/charlesng35/voiceclone/pkg/sanitize"
)

// LiveStreamer opens live synthesis sessions against the provider.
// *fishaudio.Client satisfies it.
type LiveStreamer interface {
	OpenStream(ctx context.Context, request fishaudio.TTSRequest) (*fishaudio.Stream, error)
}

// StreamHandler bridges browser WebSocket clients to the provider's live
// synthesis socket. Clients speak JSON; the provider speaks MessagePack.
type StreamHandler struct {
	streamer LiveStreamer
	store    *services.ModelService
}

// NewStreamHandler constructs a StreamHandler instance.
func NewStreamHandler(streamer LiveStreamer, store *services.ModelService) *StreamHandler {
	return &StreamHandler{
		streamer: streamer,
		store:    store,
	}
}

// wsClientEvent is one JSON frame from the browser.
type wsClientEvent struct {
	Event     string  `json:"event"`
	Text      string  `json:"text,omitempty"`
	ModelID   string  `json:"modelId,omitempty"`
	ModelName string  `json:"modelName,omitempty"`
	Format    string  `json:"format,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
}

// wsServerEvent is one JSON frame to the browser. Audio payloads are base64
// encoded because the frames are text, not binary.
type wsServerEvent struct {
	Event   string `json:"event"`
	Audio   string `json:"audio,omitempty"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// clientConn serializes writes to the browser socket. The request goroutine
// and the provider pump both emit frames; gorilla/websocket allows only one
// concurrent writer per connection.
type clientConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *clientConn) WriteEvent(event wsServerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(event)
}

func (c *clientConn) ReadJSON(v any) error {
	return c.conn.ReadJSON(v)
}

// Live upgrades the connection and proxies synthesis events until the client
// stops or either side fails. The first client frame must be a start event
// naming a stored voice.
func (h *StreamHandler) Live(c *gin.Context) {
	if h.streamer == nil {
		response.Error(c, apperrors.ErrUpstream)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// The CORS layer already vetted the origin for the HTTP surface;
		// the upgrade request carries the same origin header.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}
	defer raw.Close()

	conn := &clientConn{conn: raw}

	var start wsClientEvent
	if err := conn.ReadJSON(&start); err != nil || start.Event != fishaudio.EventStart {
		_ = conn.WriteEvent(wsServerEvent{Event: fishaudio.EventFinish, Reason: "expected a start event"})
		return
	}

	modelKey := strings.TrimSpace(start.ModelID)
	if modelKey == "" {
		modelKey = strings.TrimSpace(start.ModelName)
	}
	model, err := h.store.Resolve(requestContext(c), modelKey)
	if err != nil || !model.Ready() {
		_ = conn.WriteEvent(wsServerEvent{Event: fishaudio.EventFinish, Reason: "unknown or unready voice model"})
		return
	}

	request := fishaudio.TTSRequest{
		ReferenceID: model.RemoteModelID,
		Format:      start.Format,
		Latency:     fishaudio.LatencyBalanced,
	}
	if start.Speed > 0 {
		request.Prosody = &fishaudio.Prosody{Speed: start.Speed}
	}

	stream, err := h.streamer.OpenStream(requestContext(c), request)
	if err != nil {
		logger.Warn("live synthesis dial failed", zap.String("error", sanitize.ErrorMessage(err)))
		_ = conn.WriteEvent(wsServerEvent{Event: fishaudio.EventFinish, Reason: "provider connection failed"})
		return
	}
	defer stream.Close()

	go h.pumpProviderEvents(conn, stream)
	h.pumpClientEvents(conn, stream)
}

// pumpClientEvents forwards client text/flush/stop frames upstream. Returns
// when the client disconnects or sends stop.
func (h *StreamHandler) pumpClientEvents(conn *clientConn, stream *fishaudio.Stream) {
	for {
		var event wsClientEvent
		if err := conn.ReadJSON(&event); err != nil {
			_ = stream.Stop()
			return
		}

		switch event.Event {
		case fishaudio.EventText:
			text := sanitize.Text(event.Text, maxSynthesisTextLength)
			if text == "" {
				continue
			}
			if err := stream.SendText(text); err != nil {
				return
			}
		case fishaudio.EventFlush:
			if err := stream.Flush(); err != nil {
				return
			}
		case fishaudio.EventStop:
			_ = stream.Stop()
			return
		default:
			_ = conn.WriteEvent(wsServerEvent{Event: fishaudio.EventLog, Message: "ignoring unknown event"})
		}
	}
}

// pumpProviderEvents relays provider audio/log frames to the client until a
// finish event or the stream errors out.
func (h *StreamHandler) pumpProviderEvents(conn *clientConn, stream *fishaudio.Stream) {
	for {
		event, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				_ = conn.WriteEvent(wsServerEvent{Event: fishaudio.EventFinish, Reason: "provider stream closed"})
			}
			return
		}

		switch event.Event {
		case fishaudio.EventAudio:
			_ = conn.WriteEvent(wsServerEvent{
				Event: fishaudio.EventAudio,
				Audio: base64.StdEncoding.EncodeToString(event.Audio),
			})
		case fishaudio.EventLog:
			_ = conn.WriteEvent(wsServerEvent{Event: fishaudio.EventLog, Message: sanitize.Message(event.Message)})
		case fishaudio.EventFinish:
			_ = conn.WriteEvent(wsServerEvent{Event: fishaudio.EventFinish, Reason: event.Reason})
			return
		}
	}
}
