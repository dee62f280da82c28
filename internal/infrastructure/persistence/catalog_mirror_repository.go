package persistence

import (
	"context"
	"fmt"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 100

// GormCatalogMirrorRepository implements catalog.MirrorRepository using GORM
type GormCatalogMirrorRepository struct {
	db *gorm.DB
}

// NewGormCatalogMirrorRepository creates a new GormCatalogMirrorRepository
func NewGormCatalogMirrorRepository(db *gorm.DB) *GormCatalogMirrorRepository {
	return &GormCatalogMirrorRepository{db: db}
}

var _ catalog.MirrorRepository = (*GormCatalogMirrorRepository)(nil)

// UpsertCategories inserts or updates categories keyed by external id
func (r *GormCatalogMirrorRepository) UpsertCategories(ctx context.Context, categories []catalog.Category) (int, error) {
	if len(categories) == 0 {
		return 0, nil
	}
	rows := make([]*models.CatalogCategoryModel, len(categories))
	for i := range categories {
		rows[i] = models.CatalogCategoryModelFromDomain(&categories[i])
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"description",
			"parent_external_id",
			"active",
			"sort_order",
			"synced_at",
		}),
	}).CreateInBatches(rows, upsertBatchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("upsert catalog categories: %w", result.Error)
	}
	return len(rows), nil
}

// UpsertProducts inserts or updates products keyed by external id
func (r *GormCatalogMirrorRepository) UpsertProducts(ctx context.Context, products []catalog.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	rows := make([]*models.CatalogProductModel, len(products))
	for i := range products {
		rows[i] = models.CatalogProductModelFromDomain(&products[i])
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"sku",
			"name",
			"description",
			"price",
			"category_external_id",
			"image_url",
			"stock_quantity",
			"active",
			"synced_at",
		}),
	}).CreateInBatches(rows, upsertBatchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("upsert catalog products: %w", result.Error)
	}
	return len(rows), nil
}

// CountProducts returns the number of mirrored products
func (r *GormCatalogMirrorRepository) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CatalogProductModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindProduct returns one mirrored product by external id
func (r *GormCatalogMirrorRepository) FindProduct(ctx context.Context, externalID int64) (*catalog.Product, error) {
	var model models.CatalogProductModel
	if err := r.db.WithContext(ctx).First(&model, "external_id = ?", externalID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}
