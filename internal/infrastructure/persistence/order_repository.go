package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements order.Repository using GORM.
// It only reads and writes the columns the admin bridge owns.
type GormOrderRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db, now: time.Now}
}

var _ order.Repository = (*GormOrderRepository)(nil)

// FindByExternalID finds an order by its admin system identity
func (r *GormOrderRepository) FindByExternalID(ctx context.Context, externalID int64) (*order.Order, error) {
	return r.findOne(ctx, "external_id = ?", externalID)
}

// FindByID finds an order by its local identity
func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *GormOrderRepository) findOne(ctx context.Context, query string, arg int64) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// SaveSyncState writes status and delivery estimate with an optimistic lock on
// version. When no row matches it distinguishes a missing order from a lost race.
func (r *GormOrderRepository) SaveSyncState(ctx context.Context, o *order.Order) error {
	now := r.now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", o.ID, o.Version).
		Updates(map[string]any{
			"status":                  o.Status.String(),
			"estimated_delivery_time": o.EstimatedDeliveryTime,
			"version":                 gorm.Expr("version + 1"),
			"updated_at":              now,
		})
	if result.Error != nil {
		return fmt.Errorf("save order sync state: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("id = ?", o.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("check order existence: %w", err)
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}

	o.Version++
	o.UpdatedAt = now
	return nil
}
