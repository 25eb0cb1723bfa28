package fishaudio

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Live-stream event names, shared by both directions of the socket.
const (
	EventStart  = "start"
	EventText   = "text"
	EventFlush  = "flush"
	EventStop   = "stop"
	EventAudio  = "audio"
	EventLog    = "log"
	EventFinish = "finish"
)

const handshakeTimeout = 15 * time.Second

// StreamEvent is one server-side event from the live synthesis socket.
type StreamEvent struct {
	Event   string `msgpack:"event"`
	Audio   []byte `msgpack:"audio"`
	Message string `msgpack:"message"`
	Reason  string `msgpack:"reason"`
}

type clientEvent struct {
	Event   string      `msgpack:"event"`
	Request *TTSRequest `msgpack:"request,omitempty"`
	Text    string      `msgpack:"text,omitempty"`
}

// Stream is an open live-synthesis session. The caller pushes text with
// SendText, signals the end of input with Flush and Stop, and drains audio
// events with Recv until a finish event or error.
type Stream struct {
	conn *websocket.Conn
}

// OpenStream dials the provider's live TTS socket and sends the start event
// carrying the session's synthesis request. Text in the request is ignored by
// the provider; the spoken text arrives through SendText.
func (c *Client) OpenStream(ctx context.Context, request TTSRequest) (*Stream, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("Model", c.backend)

	conn, resp, err := dialer.DialContext(ctx, c.wsURL+"/v1/tts/live", header)
	if err != nil {
		if resp != nil {
			return nil, parseError(resp)
		}
		return nil, &Error{Message: "live stream dial failed: " + err.Error()}
	}

	stream := &Stream{conn: conn}

	start := clientEvent{Event: EventStart}
	req := request.withDefaults()
	start.Request = &req
	if err := stream.send(start); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return stream, nil
}

// SendText pushes a text chunk into the session.
func (s *Stream) SendText(text string) error {
	return s.send(clientEvent{Event: EventText, Text: text})
}

// Flush asks the provider to synthesize any buffered text immediately.
func (s *Stream) Flush() error {
	return s.send(clientEvent{Event: EventFlush})
}

// Stop ends the session; the provider answers with a finish event.
func (s *Stream) Stop() error {
	return s.send(clientEvent{Event: EventStop})
}

// Recv blocks for the next server event.
func (s *Stream) Recv() (*StreamEvent, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, &Error{Message: "live stream read failed: " + err.Error()}
	}

	var event StreamEvent
	if err := msgpack.Unmarshal(data, &event); err != nil {
		return nil, &Error{Message: fmt.Sprintf("malformed stream event: %v", err)}
	}
	return &event, nil
}

// Close tears down the socket.
func (s *Stream) Close() error {
	return s.conn.Close()
}

func (s *Stream) send(event clientEvent) error {
	payload, err := msgpack.Marshal(event)
	if err != nil {
		return fmt.Errorf("fishaudio: encode stream event: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return &Error{Message: "live stream write failed: " + err.Error()}
	}
	return nil
}
