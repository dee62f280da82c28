package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/domain/order"
	"go.uber.org/zap"
)

// Fallback title and message used when neither the envelope nor the event type provides one
const (
	FallbackTitle   = "Order update received"
	FallbackMessage = "Order update received"
)

// ErrPublishFailed is returned when at least one topic could not be published
var ErrPublishFailed = errors.New("bridge: publishing outbound message failed")

// topicFamily groups the topics an outbound message is published to
type topicFamily string

const (
	familyOrder        topicFamily = "order"
	familyDelivery     topicFamily = "delivery"
	familyNotification topicFamily = "notification"
)

// route describes how one event type is broadcast
type route struct {
	eventType      string
	family         topicFamily
	defaultTitle   string
	defaultMessage string
	category       string
}

// routeTable is the single place where every event type is given a route.
// It implements integration.EventTypeVisitor so a new event type cannot be
// added without a route.
type routeTable struct{}

var _ integration.EventTypeVisitor[route] = routeTable{}

func (routeTable) OrderCreated() route {
	return route{
		eventType:      string(integration.EventTypeOrderCreated),
		family:         familyOrder,
		defaultTitle:   "Order created",
		defaultMessage: "Your order has been received",
	}
}

func (routeTable) OrderUpdated() route {
	return route{
		eventType:      string(integration.EventTypeOrderUpdated),
		family:         familyOrder,
		defaultTitle:   "Order updated",
		defaultMessage: "Your order details have been updated",
	}
}

func (routeTable) OrderStatusChanged() route {
	return route{
		eventType:      string(integration.EventTypeOrderStatusChanged),
		family:         familyOrder,
		defaultTitle:   "Order status updated",
		defaultMessage: "Your order status has changed",
	}
}

func (routeTable) DeliveryAssigned() route {
	return route{
		eventType:      string(integration.EventTypeDeliveryAssigned),
		family:         familyDelivery,
		defaultTitle:   "Delivery assigned",
		defaultMessage: "A courier has been assigned to your order",
	}
}

func (routeTable) DeliveryStatusUpdated() route {
	return route{
		eventType:      string(integration.EventTypeDeliveryStatusUpdated),
		family:         familyDelivery,
		defaultTitle:   "Delivery status updated",
		defaultMessage: "Your delivery status has changed",
	}
}

func (routeTable) UserNotification() route {
	return route{
		eventType:      string(integration.EventTypeUserNotification),
		family:         familyNotification,
		defaultTitle:   "Notification",
		defaultMessage: "You have a new notification",
	}
}

func (routeTable) SystemAlert() route {
	return route{
		eventType:      string(integration.EventTypeSystemAlert),
		family:         familyNotification,
		defaultTitle:   "System alert",
		defaultMessage: "A system alert was raised",
	}
}

func (routeTable) Unknown() route {
	return route{
		eventType: integration.OutboundEventTypeAdminEvent,
		family:    familyOrder,
		category:  integration.OutboundCategoryOrderUpdate,
	}
}

// EventForwarder builds outbound status messages and publishes them to the
// topic family matching the envelope's event type. It publishes for every
// processed envelope, whether or not the order changed.
type EventForwarder struct {
	sink   integration.EventSink
	logger *zap.Logger
	now    func() time.Time
}

// ForwarderOption is a functional option for EventForwarder
type ForwarderOption func(*EventForwarder)

// WithForwarderClock overrides the clock used for messages without an event timestamp
func WithForwarderClock(now func() time.Time) ForwarderOption {
	return func(f *EventForwarder) {
		f.now = now
	}
}

// NewEventForwarder creates a new EventForwarder
func NewEventForwarder(sink integration.EventSink, logger *zap.Logger, opts ...ForwarderOption) *EventForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &EventForwarder{
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BuildMessage builds the outbound message for an order and the envelope that touched it
func (f *EventForwarder) BuildMessage(o *order.Order, env integration.RemoteEnvelope, metadata map[string]any) *integration.OutboundStatusMessage {
	r := integration.VisitEventType[route](env.Type, routeTable{})

	md := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		md[k] = v
	}
	if r.category != "" {
		md["category"] = r.category
	}
	if env.Type == integration.EventTypeUnknown && env.RawType != "" {
		md["sourceType"] = env.RawType
	}

	ts := f.now().UTC()
	if env.Timestamp != nil {
		ts = env.Timestamp.UTC()
	}

	msg := &integration.OutboundStatusMessage{
		OrderID:   o.ID,
		Status:    o.Status.String(),
		EventType: r.eventType,
		Title:     firstNonEmpty(env.Title, r.defaultTitle, FallbackTitle),
		Message:   firstNonEmpty(env.Message, r.defaultMessage, FallbackMessage),
		Timestamp: ts,
		Metadata:  md,
	}
	if o.EstimatedDeliveryTime != nil {
		eta := o.EstimatedDeliveryTime.UTC()
		msg.EstimatedDeliveryTime = &eta
	}
	return msg
}

// Topics returns the topics a message for this envelope is published to
func (f *EventForwarder) Topics(orderID int64, env integration.RemoteEnvelope, metadata map[string]any) []string {
	r := integration.VisitEventType[route](env.Type, routeTable{})

	switch r.family {
	case familyDelivery:
		topics := []string{
			integration.DeliveryStatusTopic(orderID),
			integration.DeliveryNotificationsTopic(orderID),
		}
		if hasLocation(metadata) {
			topics = append(topics, integration.DeliveryLocationTopic(orderID))
		}
		return topics
	case familyNotification:
		return []string{integration.OrderNotificationsTopic(orderID)}
	default:
		return []string{
			integration.OrderStatusTopic(orderID),
			integration.OrderNotificationsTopic(orderID),
		}
	}
}

// Forward builds the outbound message and publishes it to every topic of its
// family. A failure on one topic does not prevent publishing to the others.
// It returns the number of topics published to.
func (f *EventForwarder) Forward(ctx context.Context, o *order.Order, env integration.RemoteEnvelope, metadata map[string]any) (int, error) {
	msg := f.BuildMessage(o, env, metadata)
	topics := f.Topics(o.ID, env, metadata)

	published := 0
	var errs []error
	for _, topic := range topics {
		if err := f.sink.Publish(ctx, topic, msg); err != nil {
			f.logger.Warn("Failed to publish outbound message",
				zap.String("topic", topic),
				zap.Int64("order_id", o.ID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", topic, err))
			continue
		}
		published++
	}

	if len(errs) > 0 {
		return published, fmt.Errorf("%w: %w", ErrPublishFailed, errors.Join(errs...))
	}
	return published, nil
}

func hasLocation(metadata map[string]any) bool {
	pairs := [][2]string{
		{"latitude", "longitude"},
		{"lat", "lng"},
		{"location.latitude", "location.longitude"},
		{"location.lat", "location.lng"},
	}
	for _, p := range pairs {
		if metadata[p[0]] != nil && metadata[p[1]] != nil {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
