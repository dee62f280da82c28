// Package adminsync owns the connection to the admin system of record: the
// push subscription supervisor and the choice between push and poll.
package adminsync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/storefront/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// State is the connection supervisor state
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
	StateReconnecting State = "reconnecting"
	StateShutdown     State = "shutdown"
)

// TransportNamePush is the name reported by the push transport
const TransportNamePush = "push"

// FrameHandler processes the raw envelope carried by one message frame
type FrameHandler func(ctx context.Context, raw []byte)

// SupervisorMetrics records connection lifecycle events
type SupervisorMetrics interface {
	ReconnectScheduled(ctx context.Context, attempt int, delay time.Duration)
	ConnectionStateChanged(ctx context.Context, state string)
}

type nopSupervisorMetrics struct{}

func (nopSupervisorMetrics) ReconnectScheduled(context.Context, int, time.Duration) {}
func (nopSupervisorMetrics) ConnectionStateChanged(context.Context, string)         {}

// SupervisorConfig holds connection supervisor settings
type SupervisorConfig struct {
	OrderTopic    string
	DeliveryTopic string
	Policy        ReconnectPolicy
}

// Validate checks the configuration
func (c SupervisorConfig) Validate() error {
	if c.OrderTopic == "" {
		return fmt.Errorf("%w: order topic is required", ErrInvalidConfig)
	}
	return c.Policy.Validate()
}

// Topics returns the destinations to subscribe to, without duplicates
func (c SupervisorConfig) Topics() []string {
	if c.DeliveryTopic == "" || c.DeliveryTopic == c.OrderTopic {
		return []string{c.OrderTopic}
	}
	return []string{c.OrderTopic, c.DeliveryTopic}
}

// ConnectionSupervisor keeps one subscription to the admin system alive.
// A single worker goroutine dials, subscribes, reads frames and sleeps
// between reconnect attempts, so at most one connect attempt is ever in
// flight.
type ConnectionSupervisor struct {
	cfg     SupervisorConfig
	dialer  Dialer
	handler FrameHandler
	metrics SupervisorMetrics
	logger  *zap.Logger

	mu             sync.Mutex
	state          State
	started        bool
	attempt        int
	nextDelay      time.Duration
	lastErr        string
	connectedSince *time.Time
	reconnects     int64
	session        Session
	cancel         context.CancelFunc
	done           chan struct{}

	frames atomic.Int64
}

// SupervisorOption is a functional option for ConnectionSupervisor
type SupervisorOption func(*ConnectionSupervisor)

// WithSupervisorMetrics sets the metrics recorder
func WithSupervisorMetrics(m SupervisorMetrics) SupervisorOption {
	return func(s *ConnectionSupervisor) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewConnectionSupervisor creates a supervisor in the Disconnected state
func NewConnectionSupervisor(cfg SupervisorConfig, dialer Dialer, handler FrameHandler, logger *zap.Logger, opts ...SupervisorOption) (*ConnectionSupervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dialer == nil || handler == nil {
		return nil, fmt.Errorf("%w: dialer and handler are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ConnectionSupervisor{
		cfg:     cfg,
		dialer:  dialer,
		handler: handler,
		metrics: nopSupervisorMetrics{},
		logger:  logger.With(zap.String("component", "connection_supervisor")),
		state:   StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns the transport name
func (s *ConnectionSupervisor) Name() string {
	return TransportNamePush
}

// Start launches the worker. Calling Start on a running supervisor is a no-op.
func (s *ConnectionSupervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateShutdown {
		s.mu.Unlock()
		return ErrSupervisorStopped
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(runCtx)

	s.logger.Info("Connection supervisor started",
		zap.Strings("topics", s.cfg.Topics()),
		zap.Float64("backoff_base", s.cfg.Policy.Base),
		zap.Duration("backoff_cap", s.cfg.Policy.Cap),
	)
	return nil
}

// Stop cancels any pending reconnect timer, closes the connection and waits
// for the worker within ctx. The supervisor ends in the Shutdown state.
func (s *ConnectionSupervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateShutdown {
		s.mu.Unlock()
		return nil
	}
	if !s.started {
		s.state = StateShutdown
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	session := s.session
	done := s.done
	s.mu.Unlock()

	if session != nil {
		_ = session.Close()
	}

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		s.logger.Warn("Connection supervisor did not stop in time", zap.Error(err))
	}

	s.transition(ctx, StateShutdown)
	s.logger.Info("Connection supervisor stopped")
	return err
}

// State returns the current state
func (s *ConnectionSupervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns a snapshot of the connection
func (s *ConnectionSupervisor) Status() integration.TransportStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := integration.TransportStatus{
		Transport:      TransportNamePush,
		State:          string(s.state),
		Attempt:        s.attempt,
		LastError:      s.lastErr,
		FramesReceived: s.frames.Load(),
		Reconnects:     s.reconnects,
	}
	if s.nextDelay > 0 {
		st.NextDelay = s.nextDelay.String()
	}
	if s.connectedSince != nil {
		t := *s.connectedSince
		st.ConnectedSince = &t
	}
	return st
}

func (s *ConnectionSupervisor) run(ctx context.Context) {
	defer close(s.done)
	bo := s.cfg.Policy.NewBackOff()

	for {
		if ctx.Err() != nil {
			return
		}
		s.transition(ctx, StateConnecting)

		err := s.connectAndServe(ctx, bo.Reset)
		if ctx.Err() != nil {
			return
		}

		delay := bo.NextBackOff()
		attempt := s.scheduleReconnect(ctx, err, delay)
		s.logger.Warn("Admin subscription unavailable, reconnect scheduled",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connectAndServe dials, subscribes and reads frames until the session fails
func (s *ConnectionSupervisor) connectAndServe(ctx context.Context, onSubscribed func()) error {
	session, err := s.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if !s.attach(ctx, session) {
		_ = session.Close()
		return ctx.Err()
	}
	defer s.detach(session)

	for _, topic := range s.cfg.Topics() {
		if err := session.Subscribe(ctx, topic); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	onSubscribed()
	s.markSubscribed(ctx)

	for {
		frame, err := session.Receive(ctx)
		if err != nil {
			return err
		}
		if frame.Type != FrameMessage {
			s.logger.Debug("Ignoring frame", zap.String("type", frame.Type))
			continue
		}
		s.frames.Add(1)
		s.handler(ctx, frame.Payload())
	}
}

func (s *ConnectionSupervisor) attach(ctx context.Context, session Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.state == StateShutdown {
		return false
	}
	s.session = session
	return true
}

func (s *ConnectionSupervisor) detach(session Session) {
	s.mu.Lock()
	if s.session == session {
		s.session = nil
	}
	s.connectedSince = nil
	s.mu.Unlock()
	_ = session.Close()
}

func (s *ConnectionSupervisor) markSubscribed(ctx context.Context) {
	now := time.Now().UTC()
	s.mu.Lock()
	s.attempt = 0
	s.nextDelay = 0
	s.connectedSince = &now
	s.state = StateSubscribed
	s.mu.Unlock()

	s.metrics.ConnectionStateChanged(ctx, string(StateSubscribed))
	s.logger.Info("Subscribed to admin topics", zap.Strings("topics", s.cfg.Topics()))
}

func (s *ConnectionSupervisor) scheduleReconnect(ctx context.Context, cause error, delay time.Duration) int {
	s.mu.Lock()
	s.attempt++
	attempt := s.attempt
	s.nextDelay = delay
	if cause != nil {
		s.lastErr = cause.Error()
	}
	s.reconnects++
	s.state = StateReconnecting
	s.mu.Unlock()

	s.metrics.ConnectionStateChanged(ctx, string(StateReconnecting))
	s.metrics.ReconnectScheduled(ctx, attempt, delay)
	return attempt
}

func (s *ConnectionSupervisor) transition(ctx context.Context, state State) {
	s.mu.Lock()
	if s.state == StateShutdown {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()
	s.metrics.ConnectionStateChanged(ctx, string(state))
}

var _ integration.Transport = (*ConnectionSupervisor)(nil)
