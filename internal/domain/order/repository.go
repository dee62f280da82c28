package order

import "context"

// Repository is the OrderStore port used by the admin bridge.
// Implementations return shared.ErrNotFound when no order matches and
// shared.ErrConcurrencyConflict when SaveSyncState loses an optimistic lock.
type Repository interface {
	// FindByExternalID finds an order by its admin system identity
	FindByExternalID(ctx context.Context, externalID int64) (*Order, error)

	// FindByID finds an order by its local identity
	FindByID(ctx context.Context, id int64) (*Order, error)

	// SaveSyncState persists Status and EstimatedDeliveryTime using the
	// order's Version for compare-and-set. On success the order's Version
	// is incremented.
	SaveSyncState(ctx context.Context, o *Order) error
}
