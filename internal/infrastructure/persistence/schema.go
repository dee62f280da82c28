package persistence

import (
	"fmt"

	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// AutoMigrate creates the bridge-owned tables from the GORM models.
// Postgres deployments use the SQL migrations instead; this is for sqlite
// development databases.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.OrderModel{},
		&models.CatalogCategoryModel{},
		&models.CatalogProductModel{},
	); err != nil {
		return fmt.Errorf("failed to migrate bridge schema: %w", err)
	}
	return nil
}
