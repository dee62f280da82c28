package integration

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Admin source errors
var (
	ErrAdminUnavailable     = errors.New("integration: admin system temporarily unavailable")
	ErrAdminRequestFailed   = errors.New("integration: admin request failed")
	ErrAdminInvalidResponse = errors.New("integration: invalid admin response")
	ErrAdminAuthFailed      = errors.New("integration: admin authentication failed")
	ErrAdminRateLimited     = errors.New("integration: admin rate limited")
)

// OrderSource fetches full order snapshots from the admin system
type OrderSource interface {
	// ListOrdersByStatus returns every remote order currently in the given status
	ListOrdersByStatus(ctx context.Context, status string) ([]map[string]any, error)
}

// RemoteCategory is a category as returned by the admin catalog API
type RemoteCategory struct {
	ID          int64  `json:"id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parentId" validate:"omitempty,gt=0"`
	Active      *bool  `json:"active"`
	SortOrder   int    `json:"sortOrder"`
}

// RemoteProduct is a product as returned by the admin catalog API
type RemoteProduct struct {
	ID            int64           `json:"id" validate:"required,gt=0"`
	SKU           string          `json:"sku" validate:"max=64"`
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	CategoryID    *int64          `json:"categoryId" validate:"omitempty,gt=0"`
	ImageURL      string          `json:"imageUrl" validate:"omitempty,url"`
	StockQuantity int             `json:"stockQuantity" validate:"gte=0"`
	Active        *bool           `json:"active"`
}

// CatalogSource fetches the admin catalog
type CatalogSource interface {
	ListCategories(ctx context.Context) ([]RemoteCategory, error)
	ListProducts(ctx context.Context) ([]RemoteProduct, error)
}
