package order

import (
	"strings"
	"time"
)

// Status represents the lifecycle status of a locally owned order
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusProcessing     Status = "PROCESSING"
	StatusPreparing      Status = "PREPARING"
	StatusReadyForPickup Status = "READY_FOR_PICKUP"
	StatusShipped        Status = "SHIPPED"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
	StatusRefunded       Status = "REFUNDED"
)

// AllStatuses returns every recognized order status
func AllStatuses() []Status {
	return []Status{
		StatusPending,
		StatusConfirmed,
		StatusProcessing,
		StatusPreparing,
		StatusReadyForPickup,
		StatusShipped,
		StatusOutForDelivery,
		StatusDelivered,
		StatusCancelled,
		StatusRefunded,
	}
}

// IsValid checks if the status is a recognized Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusPreparing, StatusReadyForPickup,
		StatusShipped, StatusOutForDelivery, StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// ParseStatus maps a raw status string onto a recognized Status.
// Matching is case-insensitive; hyphens and spaces are treated as underscores.
// The second return value is false when the value is not a recognized status.
func ParseStatus(raw string) (Status, bool) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		return "", false
	}
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToUpper(normalized))
	s := Status(normalized)
	if !s.IsValid() {
		return "", false
	}
	return s, true
}

// Order is the locally owned order aggregate as seen by the admin bridge.
// The bridge reads every field but only ever mutates Status and
// EstimatedDeliveryTime.
type Order struct {
	// ID is the local identity of the order
	ID int64
	// ExternalID is the identity of the same order in the admin system, if linked
	ExternalID *int64
	// Status is the current order status
	Status Status
	// EstimatedDeliveryTime is the current delivery estimate, if any
	EstimatedDeliveryTime *time.Time
	// Version is used for optimistic locking
	Version int
	// UpdatedAt is when the order was last persisted
	UpdatedAt time.Time
}

// Clone returns a deep copy of the order so callers can mutate a snapshot
// without affecting the original.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.ExternalID != nil {
		ext := *o.ExternalID
		c.ExternalID = &ext
	}
	if o.EstimatedDeliveryTime != nil {
		eta := *o.EstimatedDeliveryTime
		c.EstimatedDeliveryTime = &eta
	}
	return &c
}

// ApplyStatus sets the status if it differs from the current one.
// Returns true if the order was modified.
func (o *Order) ApplyStatus(status Status) bool {
	if !status.IsValid() || o.Status == status {
		return false
	}
	o.Status = status
	return true
}

// TimestampPrecision is the resolution at which order timestamps are stored
// and compared. It matches PostgreSQL's TIMESTAMPTZ.
const TimestampPrecision = time.Microsecond

// ApplyEstimatedDeliveryTime sets the delivery estimate if it differs from the current one.
// The estimate is truncated to TimestampPrecision first, so a value that
// already round-tripped through storage compares equal.
// Returns true if the order was modified.
func (o *Order) ApplyEstimatedDeliveryTime(eta time.Time) bool {
	eta = eta.Truncate(TimestampPrecision)
	if o.EstimatedDeliveryTime != nil && o.EstimatedDeliveryTime.Equal(eta) {
		return false
	}
	o.EstimatedDeliveryTime = &eta
	return true
}
