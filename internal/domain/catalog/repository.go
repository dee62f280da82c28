package catalog

import "context"

// MirrorRepository persists the local catalog mirror.
// Upserts are keyed by ExternalID and return the number of rows written.
type MirrorRepository interface {
	// UpsertCategories inserts or updates the given categories
	UpsertCategories(ctx context.Context, categories []Category) (int, error)

	// UpsertProducts inserts or updates the given products
	UpsertProducts(ctx context.Context, products []Product) (int, error)

	// CountProducts returns the number of mirrored products
	CountProducts(ctx context.Context) (int64, error)
}
