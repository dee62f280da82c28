package models

import (
	"time"

	"github.com/storefront/backend/internal/domain/order"
)

// OrderModel is the persistence model for the bridge-owned columns of an order.
// Other order columns belong to the order CRUD layer and are never written here.
type OrderModel struct {
	ID                    int64      `gorm:"primaryKey"`
	ExternalID            *int64     `gorm:"uniqueIndex"`
	Status                string     `gorm:"type:varchar(32);not null"`
	EstimatedDeliveryTime *time.Time `gorm:"column:estimated_delivery_time"`
	Version               int        `gorm:"not null;default:1"`
	CreatedAt             time.Time  `gorm:"not null"`
	UpdatedAt             time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		ID:        m.ID,
		Status:    order.Status(m.Status),
		Version:   m.Version,
		UpdatedAt: m.UpdatedAt,
	}
	if m.ExternalID != nil {
		ext := *m.ExternalID
		o.ExternalID = &ext
	}
	if m.EstimatedDeliveryTime != nil {
		eta := m.EstimatedDeliveryTime.UTC()
		o.EstimatedDeliveryTime = &eta
	}
	return o
}

// OrderModelFromDomain creates a persistence model from a domain Order
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{
		ID:                    o.ID,
		ExternalID:            o.ExternalID,
		Status:                o.Status.String(),
		EstimatedDeliveryTime: o.EstimatedDeliveryTime,
		Version:               o.Version,
		UpdatedAt:             o.UpdatedAt,
	}
	return m
}
