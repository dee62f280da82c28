package catalog

import (
	"strings"
	"time"

	"github.com/storefront/backend/internal/domain/shared"
)

// Category is a locally mirrored category from the admin catalog.
// The admin system is the system of record; the mirror is keyed by ExternalID.
type Category struct {
	ExternalID       int64
	Name             string
	Description      string
	ParentExternalID *int64
	Active           bool
	SortOrder        int
	SyncedAt         time.Time
}

// NewCategory creates a mirrored category, validating the admin fields
func NewCategory(externalID int64, name string) (*Category, error) {
	if externalID <= 0 {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ID", "Category external id must be positive")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Category name cannot be empty")
	}
	if len(name) > 100 {
		return nil, shared.NewDomainError("INVALID_NAME", "Category name cannot exceed 100 characters")
	}
	return &Category{
		ExternalID: externalID,
		Name:       name,
		Active:     true,
	}, nil
}

// IsRoot returns true if the category has no parent
func (c *Category) IsRoot() bool {
	return c.ParentExternalID == nil
}
