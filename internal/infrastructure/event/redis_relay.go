package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// DefaultRelayChannel is the redis channel used when none is configured
const DefaultRelayChannel = "storefront:bridge:outbound"

// ErrRelayRunning is returned when Run is called on a relay that is already running
var ErrRelayRunning = errors.New("event: redis relay already running")

// errRelayClosed marks a subscription that ended while the relay was still wanted
var errRelayClosed = errors.New("event: relay subscription closed")

// relayEnvelope is the wire format on the redis channel
type relayEnvelope struct {
	Topic   string                             `json:"topic"`
	Message *integration.OutboundStatusMessage `json:"message"`
}

// RedisClient is the subset of the go-redis client used by the relay
type RedisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisTopicRelay is an EventSink that publishes outbound messages to a redis
// channel. Run subscribes to the same channel and feeds every message into
// the local hub, so subscribers on every instance receive every broadcast.
type RedisTopicRelay struct {
	client  RedisClient
	channel string
	local   integration.EventSink
	logger  *zap.Logger
	// newBackOff builds the resubscribe schedule used by Serve
	newBackOff func() backoff.BackOff
	run        func(ctx context.Context, onSubscribed func()) error

	mu      sync.Mutex
	running bool
}

// RedisRelayOption is a functional option for RedisTopicRelay
type RedisRelayOption func(*RedisTopicRelay)

// WithRelayChannel sets the redis channel name
func WithRelayChannel(channel string) RedisRelayOption {
	return func(r *RedisTopicRelay) {
		if channel != "" {
			r.channel = channel
		}
	}
}

// WithRelayLogger sets the logger for the relay
func WithRelayLogger(logger *zap.Logger) RedisRelayOption {
	return func(r *RedisTopicRelay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRelayBackOff sets the schedule Serve waits on between subscription attempts
func WithRelayBackOff(newBackOff func() backoff.BackOff) RedisRelayOption {
	return func(r *RedisTopicRelay) {
		if newBackOff != nil {
			r.newBackOff = newBackOff
		}
	}
}

// DefaultRelayBackOff retries forever, from 500ms up to 30s between attempts
func DefaultRelayBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// NewRedisTopicRelay creates a relay that delivers received messages into local.
// The caller retains ownership of client.
func NewRedisTopicRelay(client RedisClient, local integration.EventSink, opts ...RedisRelayOption) *RedisTopicRelay {
	r := &RedisTopicRelay{
		client:  client,
		channel: DefaultRelayChannel,
		local:   local,
		logger:  zap.NewNop(),

		newBackOff: DefaultRelayBackOff,
	}
	r.run = r.subscribe
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish sends msg to every instance listening on the relay channel
func (r *RedisTopicRelay) Publish(ctx context.Context, topic string, msg *integration.OutboundStatusMessage) error {
	data, err := json.Marshal(relayEnvelope{Topic: topic, Message: msg})
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Error("Failed to publish relay message",
			zap.String("channel", r.channel),
			zap.String("topic", topic),
			zap.Error(err))
		return fmt.Errorf("failed to publish relay message: %w", err)
	}
	return nil
}

// Serve runs the relay until ctx is cancelled. A failed or closed
// subscription is retried on the relay's backoff schedule, which restarts
// after every successful subscribe.
func (r *RedisTopicRelay) Serve(ctx context.Context) error {
	bo := backoff.WithContext(r.newBackOff(), ctx)
	op := func() error {
		err := r.run(ctx, bo.Reset)
		switch {
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case errors.Is(err, ErrRelayRunning):
			return backoff.Permanent(err)
		case err == nil:
			return errRelayClosed
		}
		return err
	}
	return backoff.RetryNotify(op, bo, func(err error, wait time.Duration) {
		r.logger.Warn("Relay subscription lost, retrying",
			zap.String("channel", r.channel),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	})
}

// Run subscribes to the relay channel once and blocks until ctx is cancelled
// or the subscription channel closes.
func (r *RedisTopicRelay) Run(ctx context.Context) error {
	return r.run(ctx, nil)
}

func (r *RedisTopicRelay) subscribe(ctx context.Context, onSubscribed func()) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrRelayRunning
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to relay channel: %w", err)
	}
	r.logger.Info("Subscribed to relay channel", zap.String("channel", r.channel))
	if onSubscribed != nil {
		onSubscribed()
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Relay subscription stopped")
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("Relay channel closed")
				return nil
			}
			r.deliver(ctx, msg.Payload)
		}
	}
}

func (r *RedisTopicRelay) deliver(ctx context.Context, payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Error("Failed to unmarshal relay message", zap.Error(err))
		return
	}
	if env.Topic == "" || env.Message == nil {
		r.logger.Warn("Ignoring relay message without topic or body")
		return
	}
	if err := r.local.Publish(ctx, env.Topic, env.Message); err != nil {
		r.logger.Warn("Failed to deliver relay message locally",
			zap.String("topic", env.Topic),
			zap.Error(err))
	}
}

var _ integration.EventSink = (*RedisTopicRelay)(nil)
