package adminsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testSupervisorConfig(maxDelay time.Duration) SupervisorConfig {
	return SupervisorConfig{
		OrderTopic:    "/topic/admin/orders",
		DeliveryTopic: "/topic/admin/deliveries",
		Policy:        ReconnectPolicy{Base: 2, Cap: maxDelay, Unit: time.Millisecond},
	}
}

func startSupervisor(t *testing.T, cfg SupervisorConfig, dialer Dialer, handler FrameHandler, opts ...SupervisorOption) *ConnectionSupervisor {
	t.Helper()
	s, err := NewConnectionSupervisor(cfg, dialer, handler, zap.NewNop(), opts...)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestNewConnectionSupervisor_Validation(t *testing.T) {
	h := (&recordingHandler{}).handle

	_, err := NewConnectionSupervisor(SupervisorConfig{Policy: ReconnectPolicy{Base: 2, Cap: time.Minute}}, &fakeDialer{}, h, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewConnectionSupervisor(testSupervisorConfig(time.Second), nil, h, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s, err := NewConnectionSupervisor(testSupervisorConfig(time.Second), &fakeDialer{}, h, nil)
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, "push", s.Name())
}

func TestConnectionSupervisor_SubscribesAndDispatches(t *testing.T) {
	dialer := &fakeDialer{}
	handler := &recordingHandler{}
	s := startSupervisor(t, testSupervisorConfig(time.Second), dialer, handler.handle)

	require.Eventually(t, func() bool { return s.State() == StateSubscribed }, waitFor, tick)
	sess := dialer.session(0)
	assert.Equal(t, []string{"/topic/admin/orders", "/topic/admin/deliveries"}, sess.topics())

	sess.frames <- Frame{Type: FrameMessage, Body: []byte(`{"type":"ORDER_CREATED"}`)}
	sess.frames <- Frame{Type: FramePong}
	sess.frames <- Frame{Type: FrameMessage, Body: []byte(`"{\"type\":\"ORDER_UPDATED\"}"`)}

	require.Eventually(t, func() bool { return len(handler.all()) == 2 }, waitFor, tick)
	assert.Equal(t, []string{`{"type":"ORDER_CREATED"}`, `{"type":"ORDER_UPDATED"}`}, handler.all())

	st := s.Status()
	assert.Equal(t, "subscribed", st.State)
	assert.Equal(t, int64(2), st.FramesReceived)
	assert.Zero(t, st.Attempt)
	assert.NotNil(t, st.ConnectedSince)
}

func TestConnectionSupervisor_SameTopicSubscribedOnce(t *testing.T) {
	cfg := testSupervisorConfig(time.Second)
	cfg.DeliveryTopic = cfg.OrderTopic
	dialer := &fakeDialer{}
	s := startSupervisor(t, cfg, dialer, (&recordingHandler{}).handle)

	require.Eventually(t, func() bool { return s.State() == StateSubscribed }, waitFor, tick)
	assert.Equal(t, []string{"/topic/admin/orders"}, dialer.session(0).topics())
}

func TestConnectionSupervisor_BacksOffUntilConnected(t *testing.T) {
	dialer := &fakeDialer{script: []any{errDialRefused, errDialRefused, errDialRefused, errDialRefused}}
	metrics := &recordingSupervisorMetrics{}
	s := startSupervisor(t, testSupervisorConfig(8*time.Millisecond), dialer, (&recordingHandler{}).handle,
		WithSupervisorMetrics(metrics))

	require.Eventually(t, func() bool { return s.State() == StateSubscribed }, waitFor, tick)

	assert.Equal(t, []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 8 * time.Millisecond, 8 * time.Millisecond},
		metrics.reconnectDelays())
	assert.Equal(t, int32(5), dialer.dials.Load())
	assert.Equal(t, int32(1), dialer.maxConc.Load())

	st := s.Status()
	assert.Zero(t, st.Attempt, "attempt counter resets once subscribed")
	assert.Equal(t, int64(4), st.Reconnects)
	assert.Contains(t, st.LastError, "connection refused")
}

func TestConnectionSupervisor_ReconnectsAfterTransportError(t *testing.T) {
	dialer := &fakeDialer{}
	metrics := &recordingSupervisorMetrics{}
	s := startSupervisor(t, testSupervisorConfig(50*time.Millisecond), dialer, (&recordingHandler{}).handle,
		WithSupervisorMetrics(metrics))

	require.Eventually(t, func() bool { return s.State() == StateSubscribed }, waitFor, tick)
	first := dialer.session(0)
	first.failed <- errors.New("connection reset by peer")

	require.Eventually(t, func() bool {
		second := dialer.session(1)
		return second != nil && len(second.topics()) == 2 && s.State() == StateSubscribed
	}, waitFor, tick)
	assert.True(t, first.isClosed())
	assert.Equal(t, []time.Duration{2 * time.Millisecond}, metrics.reconnectDelays())
}

func TestConnectionSupervisor_SubscribeFailureReconnects(t *testing.T) {
	bad := newFakeSession()
	bad.subErr = errors.New("destination rejected")
	dialer := &fakeDialer{script: []any{bad}}
	s := startSupervisor(t, testSupervisorConfig(10*time.Millisecond), dialer, (&recordingHandler{}).handle)

	require.Eventually(t, func() bool { return s.State() == StateSubscribed }, waitFor, tick)
	assert.True(t, bad.isClosed())
	assert.Equal(t, int64(1), s.Status().Reconnects)
}

func TestConnectionSupervisor_StartIsIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	s := startSupervisor(t, testSupervisorConfig(time.Second), dialer, (&recordingHandler{}).handle)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return s.State() == StateSubscribed }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), dialer.dials.Load())
}

func TestConnectionSupervisor_StopCancelsPendingReconnect(t *testing.T) {
	dialer := &fakeDialer{script: []any{errDialRefused}}
	s, err := NewConnectionSupervisor(
		SupervisorConfig{OrderTopic: "/topic/admin/orders", Policy: ReconnectPolicy{Base: 2, Cap: time.Hour}},
		dialer, (&recordingHandler{}).handle, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return s.State() == StateReconnecting }, waitFor, tick)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	started := time.Now()
	require.NoError(t, s.Stop(ctx))
	assert.Less(t, time.Since(started), 500*time.Millisecond)

	assert.Equal(t, StateShutdown, s.State())
	assert.Equal(t, int32(1), dialer.dials.Load())
	assert.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSupervisorStopped)
}

func TestConnectionSupervisor_StopClosesLiveSession(t *testing.T) {
	dialer := &fakeDialer{}
	s := startSupervisor(t, testSupervisorConfig(time.Second), dialer, (&recordingHandler{}).handle)
	require.Eventually(t, func() bool { return s.State() == StateSubscribed }, waitFor, tick)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	assert.True(t, dialer.session(0).isClosed())
	assert.Equal(t, "shutdown", s.Status().State)
	assert.Nil(t, s.Status().ConnectedSince)
}

func TestConnectionSupervisor_StopBeforeStart(t *testing.T) {
	s, err := NewConnectionSupervisor(testSupervisorConfig(time.Second), &fakeDialer{}, (&recordingHandler{}).handle, nil)
	require.NoError(t, err)
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, StateShutdown, s.State())
}
