package store

import (
	"context"

	"product-catalog-engine/internal/domain"
)

// ProductSource supplies raw product batches to the load controller.
// Implementations return the full collection in a stable order; filtering,
// sorting and pagination happen in the catalog store, never here.
type ProductSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListRecommendations(ctx context.Context, limit int) ([]domain.Product, error) // limit <= 0 means the source default
}

// Invalidator is implemented by sources that cache the catalog. Dropping the
// cache makes the next ListProducts read the primary source.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}
