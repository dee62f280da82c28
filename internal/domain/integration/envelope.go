package integration

import (
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Event Types
// ---------------------------------------------------------------------------

// EventType identifies the kind of admin event carried by an envelope
type EventType string

const (
	EventTypeOrderCreated          EventType = "ORDER_CREATED"
	EventTypeOrderUpdated          EventType = "ORDER_UPDATED"
	EventTypeOrderStatusChanged    EventType = "ORDER_STATUS_CHANGED"
	EventTypeDeliveryAssigned      EventType = "DELIVERY_ASSIGNED"
	EventTypeDeliveryStatusUpdated EventType = "DELIVERY_STATUS_UPDATED"
	EventTypeUserNotification      EventType = "USER_NOTIFICATION"
	EventTypeSystemAlert           EventType = "SYSTEM_ALERT"
	// EventTypeUnknown is used for a missing, null or unrecognized type tag
	EventTypeUnknown EventType = "UNKNOWN"
)

// AllEventTypes returns every recognized event type, excluding EventTypeUnknown
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeOrderCreated,
		EventTypeOrderUpdated,
		EventTypeOrderStatusChanged,
		EventTypeDeliveryAssigned,
		EventTypeDeliveryStatusUpdated,
		EventTypeUserNotification,
		EventTypeSystemAlert,
	}
}

// ParseEventType maps a raw type tag onto an EventType.
// Unrecognized values map to EventTypeUnknown.
func ParseEventType(raw string) EventType {
	t := EventType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case EventTypeOrderCreated, EventTypeOrderUpdated, EventTypeOrderStatusChanged,
		EventTypeDeliveryAssigned, EventTypeDeliveryStatusUpdated,
		EventTypeUserNotification, EventTypeSystemAlert:
		return t
	}
	return EventTypeUnknown
}

// String returns the string representation of EventType
func (t EventType) String() string {
	return string(t)
}

// IsKnown returns true if the type is one of the recognized variants
func (t EventType) IsKnown() bool {
	return ParseEventType(string(t)) != EventTypeUnknown
}

// EventTypeVisitor has one method per EventType variant. Implementations
// are checked by the compiler to handle every variant; adding a variant
// here breaks every visitor until it is handled.
type EventTypeVisitor[T any] interface {
	OrderCreated() T
	OrderUpdated() T
	OrderStatusChanged() T
	DeliveryAssigned() T
	DeliveryStatusUpdated() T
	UserNotification() T
	SystemAlert() T
	Unknown() T
}

// VisitEventType dispatches t to the matching visitor method
func VisitEventType[T any](t EventType, v EventTypeVisitor[T]) T {
	switch t {
	case EventTypeOrderCreated:
		return v.OrderCreated()
	case EventTypeOrderUpdated:
		return v.OrderUpdated()
	case EventTypeOrderStatusChanged:
		return v.OrderStatusChanged()
	case EventTypeDeliveryAssigned:
		return v.DeliveryAssigned()
	case EventTypeDeliveryStatusUpdated:
		return v.DeliveryStatusUpdated()
	case EventTypeUserNotification:
		return v.UserNotification()
	case EventTypeSystemAlert:
		return v.SystemAlert()
	default:
		return v.Unknown()
	}
}

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// RemoteEnvelope is one normalized inbound admin event. It is created when a
// push frame is received or synthesized per item on a poll tick, and is
// discarded after a single processing pass.
type RemoteEnvelope struct {
	// Type is the parsed event variant
	Type EventType
	// RawType is the type tag as received, empty when missing or null
	RawType string
	// Title is the optional admin-provided title
	Title string
	// Message is the optional admin-provided message
	Message string
	// Timestamp is the optional event time
	Timestamp *time.Time
	// Payload is the untyped event body
	Payload map[string]any
}

// NewPolledEnvelope synthesizes an ORDER_STATUS_CHANGED envelope carrying a
// full remote order object as payload
func NewPolledEnvelope(item map[string]any, polledAt time.Time) RemoteEnvelope {
	if item == nil {
		item = map[string]any{}
	}
	ts := polledAt
	return RemoteEnvelope{
		Type:      EventTypeOrderStatusChanged,
		RawType:   string(EventTypeOrderStatusChanged),
		Timestamp: &ts,
		Payload:   item,
	}
}
