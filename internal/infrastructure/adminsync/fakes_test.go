package adminsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeSession struct {
	frames chan Frame
	failed chan error
	closed chan struct{}
	once   sync.Once

	mu         sync.Mutex
	subscribed []string
	subErr     error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		frames: make(chan Frame, 16),
		failed: make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *fakeSession) Subscribe(_ context.Context, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subErr != nil {
		return s.subErr
	}
	s.subscribed = append(s.subscribed, destination)
	return nil
}

func (s *fakeSession) Receive(ctx context.Context) (Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case err := <-s.failed:
		return Frame{}, err
	case <-s.closed:
		return Frame{}, ErrSessionClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (s *fakeSession) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSession) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *fakeSession) topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subscribed...)
}

// fakeDialer hands out scripted results in order and then fresh sessions
type fakeDialer struct {
	mu       sync.Mutex
	script   []any // error or *fakeSession
	sessions []*fakeSession
	dials    atomic.Int32
	inFlight atomic.Int32
	maxConc  atomic.Int32
}

func (d *fakeDialer) Dial(ctx context.Context) (Session, error) {
	d.dials.Add(1)
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		cur := d.maxConc.Load()
		if n <= cur || d.maxConc.CompareAndSwap(cur, n) {
			break
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	var next any
	if len(d.script) > 0 {
		next, d.script = d.script[0], d.script[1:]
	}
	switch v := next.(type) {
	case error:
		return nil, v
	case *fakeSession:
		d.sessions = append(d.sessions, v)
		return v, nil
	default:
		s := newFakeSession()
		d.sessions = append(d.sessions, s)
		return s, nil
	}
}

func (d *fakeDialer) session(i int) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.sessions) {
		return nil
	}
	return d.sessions[i]
}

type recordingHandler struct {
	mu   sync.Mutex
	raws []string
}

func (h *recordingHandler) handle(_ context.Context, raw []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.raws = append(h.raws, string(raw))
}

func (h *recordingHandler) all() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.raws...)
}

type recordingSupervisorMetrics struct {
	mu     sync.Mutex
	delays []time.Duration
	states []string
}

func (m *recordingSupervisorMetrics) ReconnectScheduled(_ context.Context, _ int, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, delay)
}

func (m *recordingSupervisorMetrics) ConnectionStateChanged(_ context.Context, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func (m *recordingSupervisorMetrics) reconnectDelays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.delays...)
}

var errDialRefused = errors.New("connection refused")
