package adminsync

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"
)

// WebSocketConfig configures the admin subscription endpoint
type WebSocketConfig struct {
	URL   string
	Token string
	// Origin defaults to the endpoint's http(s) origin
	Origin string
	// ReadTimeout bounds the wait for any frame, pings included; zero disables it
	ReadTimeout time.Duration
}

// WebSocketDialer dials the admin subscription endpoint over WebSocket
type WebSocketDialer struct {
	cfg WebSocketConfig
}

// NewWebSocketDialer creates a new WebSocketDialer
func NewWebSocketDialer(cfg WebSocketConfig) (*WebSocketDialer, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, fmt.Errorf("%w: subscription url %q must be ws:// or wss://", ErrInvalidConfig, cfg.URL)
	}
	if cfg.Origin == "" {
		scheme := "http"
		if u.Scheme == "wss" {
			scheme = "https"
		}
		cfg.Origin = scheme + "://" + u.Host
	}
	return &WebSocketDialer{cfg: cfg}, nil
}

// Dial opens a new WebSocket session
func (d *WebSocketDialer) Dial(ctx context.Context) (Session, error) {
	wsCfg, err := websocket.NewConfig(d.cfg.URL, d.cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("failed to build websocket config: %w", err)
	}
	if d.cfg.Token != "" {
		wsCfg.Header.Set("Authorization", "Bearer "+d.cfg.Token)
	}

	conn, err := wsCfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", d.cfg.URL, err)
	}
	return &wsSession{conn: conn, readTimeout: d.cfg.ReadTimeout}, nil
}

type wsSession struct {
	conn        *websocket.Conn
	readTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

func (s *wsSession) Subscribe(_ context.Context, destination string) error {
	return s.send(Frame{Type: FrameSubscribe, Destination: destination})
}

func (s *wsSession) Receive(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if s.readTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}

		var f Frame
		if err := websocket.JSON.Receive(s.conn, &f); err != nil {
			if s.isClosed() {
				return Frame{}, ErrSessionClosed
			}
			return Frame{}, fmt.Errorf("failed to read frame: %w", err)
		}

		switch f.Type {
		case FramePing:
			if err := s.send(Frame{Type: FramePong}); err != nil {
				return Frame{}, err
			}
		case FrameError:
			return f, fmt.Errorf("%w: %s", ErrRemoteError, string(f.Payload()))
		default:
			return f, nil
		}
	}
}

func (s *wsSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *wsSession) send(f Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := websocket.JSON.Send(s.conn, f); err != nil {
		if s.isClosed() {
			return ErrSessionClosed
		}
		return fmt.Errorf("failed to send %s frame: %w", f.Type, err)
	}
	return nil
}

func (s *wsSession) isClosed() bool {
	return s.closed.Load()
}
