package integration

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Event type labels used on outbound messages that do not carry a recognized type
const (
	OutboundEventTypeAdminEvent = "ADMIN_EVENT"
	OutboundCategoryOrderUpdate = "ORDER_UPDATE"
)

// OutboundStatusMessage is broadcast to local subscribers for every processed envelope
type OutboundStatusMessage struct {
	OrderID               int64          `json:"orderId"`
	Status                string         `json:"status"`
	EventType             string         `json:"eventType"`
	Title                 string         `json:"title"`
	Message               string         `json:"message"`
	EstimatedDeliveryTime *time.Time     `json:"estimatedDeliveryTime"`
	Timestamp             time.Time      `json:"timestamp"`
	Metadata              map[string]any `json:"metadata"`
}

// ---------------------------------------------------------------------------
// Topics
// ---------------------------------------------------------------------------

// OrderStatusTopic returns the status topic for an order
func OrderStatusTopic(orderID int64) string {
	return fmt.Sprintf("orders/%d/status", orderID)
}

// OrderNotificationsTopic returns the notifications topic for an order
func OrderNotificationsTopic(orderID int64) string {
	return fmt.Sprintf("orders/%d/notifications", orderID)
}

// DeliveryStatusTopic returns the status topic for an order's delivery
func DeliveryStatusTopic(orderID int64) string {
	return fmt.Sprintf("deliveries/%d/status", orderID)
}

// DeliveryLocationTopic returns the location topic for an order's delivery
func DeliveryLocationTopic(orderID int64) string {
	return fmt.Sprintf("deliveries/%d/location", orderID)
}

// DeliveryNotificationsTopic returns the notifications topic for an order's delivery
func DeliveryNotificationsTopic(orderID int64) string {
	return fmt.Sprintf("deliveries/%d/notifications", orderID)
}

var topicPattern = regexp.MustCompile(`^(orders/[1-9][0-9]*/(status|notifications)|deliveries/[1-9][0-9]*/(status|location|notifications))$`)

// IsValidTopic returns true if topic is one of the outbound topic shapes
func IsValidTopic(topic string) bool {
	return topicPattern.MatchString(topic)
}

// EventSink publishes outbound messages to local subscribers
type EventSink interface {
	Publish(ctx context.Context, topic string, msg *OutboundStatusMessage) error
}
