package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
)

// memOrderStore is an in-memory order.Repository with optimistic locking
type memOrderStore struct {
	mu         sync.Mutex
	orders     map[int64]*order.Order
	saveCount  atomic.Int32
	findCount  atomic.Int32
	saveErrs   []error
	lookupErr  error
	beforeSave func()
}

func newMemOrderStore(orders ...*order.Order) *memOrderStore {
	s := &memOrderStore{orders: make(map[int64]*order.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o.Clone()
	}
	return s
}

func (s *memOrderStore) FindByExternalID(_ context.Context, externalID int64) (*order.Order, error) {
	s.findCount.Add(1)
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ExternalID != nil && *o.ExternalID == externalID {
			return o.Clone(), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *memOrderStore) FindByID(_ context.Context, id int64) (*order.Order, error) {
	s.findCount.Add(1)
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *memOrderStore) SaveSyncState(_ context.Context, o *order.Order) error {
	s.saveCount.Add(1)
	if s.beforeSave != nil {
		s.beforeSave()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saveErrs) > 0 {
		err := s.saveErrs[0]
		s.saveErrs = s.saveErrs[1:]
		if err != nil {
			return err
		}
	}
	stored, ok := s.orders[o.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != o.Version {
		return shared.ErrConcurrencyConflict
	}
	o.Version++
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *memOrderStore) get(id int64) *order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Clone()
}

// bumpVersion simulates a writer in another process
func (s *memOrderStore) bumpVersion(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[id].Version++
}

var _ order.Repository = (*memOrderStore)(nil)

type publishedMessage struct {
	topic string
	msg   *integration.OutboundStatusMessage
}

// recordingSink records every published message
type recordingSink struct {
	mu        sync.Mutex
	messages  []publishedMessage
	failTopic string
}

func (s *recordingSink) Publish(_ context.Context, topic string, msg *integration.OutboundStatusMessage) error {
	if s.failTopic != "" && topic == s.failTopic {
		return errors.New("sink unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, publishedMessage{topic: topic, msg: msg})
	return nil
}

func (s *recordingSink) all() []publishedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]publishedMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *recordingSink) topics() []string {
	var topics []string
	for _, m := range s.all() {
		topics = append(topics, m.topic)
	}
	return topics
}

func int64Ptr(v int64) *int64 {
	return &v
}
