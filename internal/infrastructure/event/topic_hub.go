package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// Hub errors
var (
	ErrHubClosed          = errors.New("event: topic hub closed")
	ErrTooManySubscribers = errors.New("event: subscriber limit reached")
	ErrNoTopics           = errors.New("event: at least one topic is required")
)

// Delivery is one outbound message routed to a subscriber
type Delivery struct {
	Topic   string
	Message *integration.OutboundStatusMessage
}

// Subscription is a subscriber's view of the hub. C is closed when the
// subscription is cancelled or the hub is closed.
type Subscription struct {
	ID     string
	Topics []string
	C      <-chan Delivery

	ch      chan Delivery
	dropped atomic.Int64
	once    sync.Once
}

// Dropped returns the number of messages dropped because the subscriber was slow
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// HubStats is a point-in-time view of the hub
type HubStats struct {
	Subscribers int   `json:"subscribers"`
	Topics      int   `json:"topics"`
	Published   int64 `json:"published"`
	Dropped     int64 `json:"dropped"`
}

// TopicHub is the in-process EventSink. Each subscriber owns a bounded
// queue; a full queue drops the message for that subscriber only, so one
// slow client never blocks publishing.
type TopicHub struct {
	mu        sync.RWMutex
	subs      map[string]*Subscription
	byTopic   map[string]map[string]*Subscription
	closed    bool
	maxSubs   int
	queueSize int
	logger    *zap.Logger
	published atomic.Int64
	dropped   atomic.Int64
}

// TopicHubOption is a functional option for TopicHub
type TopicHubOption func(*TopicHub)

// WithMaxSubscribers limits concurrent subscriptions. Zero means unlimited.
func WithMaxSubscribers(n int) TopicHubOption {
	return func(h *TopicHub) {
		h.maxSubs = n
	}
}

// WithQueueSize sets the per-subscriber buffer
func WithQueueSize(n int) TopicHubOption {
	return func(h *TopicHub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// NewTopicHub creates a new TopicHub
func NewTopicHub(logger *zap.Logger, opts ...TopicHubOption) *TopicHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &TopicHub{
		subs:      make(map[string]*Subscription),
		byTopic:   make(map[string]map[string]*Subscription),
		queueSize: 16,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a subscriber for the given topics
func (h *TopicHub) Subscribe(topics ...string) (*Subscription, error) {
	unique := dedupe(topics)
	if len(unique) == 0 {
		return nil, ErrNoTopics
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	if h.maxSubs > 0 && len(h.subs) >= h.maxSubs {
		return nil, ErrTooManySubscribers
	}

	ch := make(chan Delivery, h.queueSize)
	sub := &Subscription{ID: uuid.NewString(), Topics: unique, C: ch, ch: ch}
	h.subs[sub.ID] = sub
	for _, t := range unique {
		set, ok := h.byTopic[t]
		if !ok {
			set = make(map[string]*Subscription)
			h.byTopic[t] = set
		}
		set[sub.ID] = sub
	}

	h.logger.Debug("Subscriber registered",
		zap.String("subscriber_id", sub.ID),
		zap.Strings("topics", unique),
	)
	return sub, nil
}

// Unsubscribe removes a subscription and closes its channel. Unknown ids are ignored.
func (h *TopicHub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		for _, t := range sub.Topics {
			if set := h.byTopic[t]; set != nil {
				delete(set, id)
				if len(set) == 0 {
					delete(h.byTopic, t)
				}
			}
		}
	}
	h.mu.Unlock()

	if ok {
		sub.close()
		h.logger.Debug("Subscriber removed",
			zap.String("subscriber_id", id),
			zap.Int64("dropped", sub.Dropped()),
		)
	}
}

// Publish delivers msg to every subscriber of topic without blocking
func (h *TopicHub) Publish(_ context.Context, topic string, msg *integration.OutboundStatusMessage) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}

	h.published.Add(1)
	for _, sub := range h.byTopic[topic] {
		select {
		case sub.ch <- Delivery{Topic: topic, Message: msg}:
		default:
			n := sub.dropped.Add(1)
			h.dropped.Add(1)
			h.logger.Warn("Subscriber queue full, dropping message",
				zap.String("subscriber_id", sub.ID),
				zap.String("topic", topic),
				zap.Int64("order_id", msg.OrderID),
				zap.Int64("dropped_total", n),
			)
		}
	}
	return nil
}

// Stats returns a snapshot of the hub
func (h *TopicHub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		Subscribers: len(h.subs),
		Topics:      len(h.byTopic),
		Published:   h.published.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// Close closes every subscription. Publishing after Close returns ErrHubClosed.
func (h *TopicHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.byTopic = make(map[string]map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	h.logger.Info("Topic hub closed", zap.Int("subscribers", len(subs)))
}

func dedupe(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

var _ integration.EventSink = (*TopicHub)(nil)
