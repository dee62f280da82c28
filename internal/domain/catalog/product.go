package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// Product is a locally mirrored product from the admin catalog
type Product struct {
	ExternalID         int64
	SKU                string
	Name               string
	Description        string
	Price              decimal.Decimal
	CategoryExternalID *int64
	ImageURL           string
	StockQuantity      int
	Active             bool
	SyncedAt           time.Time
}

// NewProduct creates a mirrored product, validating the admin fields
func NewProduct(externalID int64, name string, price decimal.Decimal) (*Product, error) {
	if externalID <= 0 {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ID", "Product external id must be positive")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Product name cannot exceed 200 characters")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Product price cannot be negative")
	}
	return &Product{
		ExternalID: externalID,
		Name:       name,
		Price:      price.Round(4),
		Active:     true,
	}, nil
}

// InStock returns true if the product has stock available
func (p *Product) InStock() bool {
	return p.StockQuantity > 0
}
