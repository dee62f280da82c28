package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
)

// CatalogCategoryModel is the persistence model for a mirrored admin category
type CatalogCategoryModel struct {
	ExternalID       int64     `gorm:"primaryKey;autoIncrement:false"`
	Name             string    `gorm:"type:varchar(100);not null"`
	Description      string    `gorm:"type:text"`
	ParentExternalID *int64    `gorm:"index"`
	Active           bool      `gorm:"not null;default:true"`
	SortOrder        int       `gorm:"not null;default:0"`
	SyncedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CatalogCategoryModel) TableName() string {
	return "catalog_categories"
}

// CatalogCategoryModelFromDomain creates a persistence model from a mirrored category
func CatalogCategoryModelFromDomain(c *catalog.Category) *CatalogCategoryModel {
	return &CatalogCategoryModel{
		ExternalID:       c.ExternalID,
		Name:             c.Name,
		Description:      c.Description,
		ParentExternalID: c.ParentExternalID,
		Active:           c.Active,
		SortOrder:        c.SortOrder,
		SyncedAt:         c.SyncedAt,
	}
}

// ToDomain converts the persistence model to a mirrored category
func (m *CatalogCategoryModel) ToDomain() *catalog.Category {
	return &catalog.Category{
		ExternalID:       m.ExternalID,
		Name:             m.Name,
		Description:      m.Description,
		ParentExternalID: m.ParentExternalID,
		Active:           m.Active,
		SortOrder:        m.SortOrder,
		SyncedAt:         m.SyncedAt,
	}
}

// CatalogProductModel is the persistence model for a mirrored admin product
type CatalogProductModel struct {
	ExternalID         int64           `gorm:"primaryKey;autoIncrement:false"`
	SKU                string          `gorm:"column:sku;type:varchar(64);index"`
	Name               string          `gorm:"type:varchar(200);not null"`
	Description        string          `gorm:"type:text"`
	Price              decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CategoryExternalID *int64          `gorm:"index"`
	ImageURL           string          `gorm:"type:varchar(512)"`
	StockQuantity      int             `gorm:"not null;default:0"`
	Active             bool            `gorm:"not null;default:true"`
	SyncedAt           time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CatalogProductModel) TableName() string {
	return "catalog_products"
}

// CatalogProductModelFromDomain creates a persistence model from a mirrored product
func CatalogProductModelFromDomain(p *catalog.Product) *CatalogProductModel {
	return &CatalogProductModel{
		ExternalID:         p.ExternalID,
		SKU:                p.SKU,
		Name:               p.Name,
		Description:        p.Description,
		Price:              p.Price,
		CategoryExternalID: p.CategoryExternalID,
		ImageURL:           p.ImageURL,
		StockQuantity:      p.StockQuantity,
		Active:             p.Active,
		SyncedAt:           p.SyncedAt,
	}
}

// ToDomain converts the persistence model to a mirrored product
func (m *CatalogProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		ExternalID:         m.ExternalID,
		SKU:                m.SKU,
		Name:               m.Name,
		Description:        m.Description,
		Price:              m.Price,
		CategoryExternalID: m.CategoryExternalID,
		ImageURL:           m.ImageURL,
		StockQuantity:      m.StockQuantity,
		Active:             m.Active,
		SyncedAt:           m.SyncedAt,
	}
}
