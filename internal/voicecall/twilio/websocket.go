package twilio

import (
	"encoding/json"
	"fmt"
	"sync"

	"voice-gateway/internal/observability"
	"voice-gateway/internal/voice/audio"

	"github.com/gorilla/websocket"
)

// Event names Twilio sends over a media-stream websocket.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
)

// MediaEvent is the JSON envelope for inbound control and media messages.
type MediaEvent struct {
	Event string `json:"event"`
	Start struct {
		StreamSid string `json:"streamSid"`
	} `json:"start,omitempty"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
	Stop struct {
		StreamSid string `json:"streamSid"`
	} `json:"stop,omitempty"`
}

// ParseMediaEvent decodes one inbound websocket message.
func ParseMediaEvent(data []byte) (MediaEvent, error) {
	var event MediaEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return MediaEvent{}, fmt.Errorf("failed to parse media event: %w", err)
	}
	return event, nil
}

type outboundPayload struct {
	Payload string `json:"payload"`
}

// outboundMedia is the envelope for audio sent back to the caller.
type outboundMedia struct {
	Event     string          `json:"event"`
	StreamSid string          `json:"streamSid"`
	Media     outboundPayload `json:"media"`
}

func marshalOutboundMedia(streamSid string, audioData []byte) ([]byte, error) {
	return json.Marshal(outboundMedia{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     outboundPayload{Payload: audio.BytesToBase64(audioData)},
	})
}

// Conn wraps a Twilio media-stream websocket connection. Writes are mutex
// protected so media frames keep their production order.
type Conn struct {
	conn      *websocket.Conn
	logger    *observability.Logger
	writeMu   sync.Mutex
	mu        sync.RWMutex
	streamSid string
	closeOnce sync.Once
}

func NewConn(conn *websocket.Conn, logger *observability.Logger) *Conn {
	return &Conn{
		conn:   conn,
		logger: logger,
	}
}

// SetStreamSID records the stream identifier assigned by the start event.
func (c *Conn) SetStreamSID(sid string) {
	c.mu.Lock()
	c.streamSid = sid
	c.mu.Unlock()
}

// StreamSID returns the stream identifier, or empty before the start event.
func (c *Conn) StreamSID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streamSid
}

// ReadMessage reads the next inbound websocket message.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

// WriteMedia sends one chunk of mu-law audio to the caller, tagged with the
// stream identifier.
func (c *Conn) WriteMedia(audioData []byte) error {
	sid := c.StreamSID()
	if sid == "" {
		return fmt.Errorf("no stream identifier assigned")
	}

	msg, err := marshalOutboundMedia(sid, audioData)
	if err != nil {
		return fmt.Errorf("failed to marshal media message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("failed to send media to Twilio: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the underlying connection. Safe to call
// more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		c.conn.Close()
	})
}
