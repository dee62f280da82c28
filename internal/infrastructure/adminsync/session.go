package adminsync

import (
	"context"
	"encoding/json"
)

// Frame types of the admin subscription protocol
const (
	FrameSubscribe = "subscribe"
	FrameMessage   = "message"
	FrameError     = "error"
	FramePing      = "ping"
	FramePong      = "pong"
)

// Frame is one JSON frame on the subscription connection
type Frame struct {
	Type        string          `json:"type"`
	Destination string          `json:"destination,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// Payload returns the frame body as raw envelope JSON. A body sent as a
// JSON string is unquoted first.
func (f Frame) Payload() []byte {
	if len(f.Body) > 0 && f.Body[0] == '"' {
		var s string
		if err := json.Unmarshal(f.Body, &s); err == nil {
			return []byte(s)
		}
	}
	return f.Body
}

// Session is one established subscription connection
type Session interface {
	// Subscribe asks the server to deliver messages for destination
	Subscribe(ctx context.Context, destination string) error
	// Receive blocks until the next message or error frame arrives.
	// Keep-alive frames are handled internally.
	Receive(ctx context.Context) (Frame, error)
	// Close closes the connection and unblocks Receive
	Close() error
}

// Dialer opens subscription sessions
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}
