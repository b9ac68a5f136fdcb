// Package engine composes the catalog store, the cart ledger and the load
// controller into the single state object callers talk to.
package engine

import (
	"context"

	"go.uber.org/zap"

	"product-catalog-engine/internal/cart"
	"product-catalog-engine/internal/catalog"
	"product-catalog-engine/internal/domain"
	"product-catalog-engine/internal/loader"
	"product-catalog-engine/internal/store"
	"product-catalog-engine/internal/view"
)

// Engine is constructed once by the composition root and passed to the
// transports. It holds no state of its own.
type Engine struct {
	Catalog *catalog.Store
	Cart    *cart.Aggregator
	Loads   *loader.Controller

	source              store.ProductSource
	recommendationLimit int
	viewOptions         view.Options
	logger              *zap.Logger
}

// Config carries the tunables the engine needs from configuration.
type Config struct {
	RecommendationLimit int
	VirtualizeThreshold int
}

// New wires the load controller's sinks into the catalog store.
func New(catalogStore *catalog.Store, cartAgg *cart.Aggregator, loads *loader.Controller, source store.ProductSource, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	loads.SetSink(domain.CollectionCatalog, catalogStore.ReplaceItems)
	loads.SetSink(domain.CollectionRecommendations, catalogStore.SetRecommendations)
	return &Engine{
		Catalog:             catalogStore,
		Cart:                cartAgg,
		Loads:               loads,
		source:              source,
		recommendationLimit: cfg.RecommendationLimit,
		viewOptions:         view.Options{VirtualizeThreshold: cfg.VirtualizeThreshold},
		logger:              logger.Named("engine"),
	}
}

// AddToCart adds qty of a canonical product to the cart. Unknown and
// out-of-stock products are rejected before the ledger is touched.
func (e *Engine) AddToCart(productID int64, qty int) (domain.CartLine, error) {
	if qty <= 0 {
		return domain.CartLine{}, domain.ErrInvalidQuantity
	}
	p, ok := e.Catalog.Lookup(productID)
	if !ok {
		return domain.CartLine{}, domain.ErrProductNotFound
	}
	if !p.InStock {
		return domain.CartLine{}, domain.ErrOutOfStock
	}
	line, err := e.Cart.Add(productID, qty)
	if err != nil {
		return line, err
	}
	e.logger.Info("added to cart",
		zap.Int64("product_id", productID),
		zap.Int("quantity", line.Quantity),
	)
	return line, nil
}

// Page projects the current catalog snapshot. width is the viewport width in
// pixels, 0 if unknown.
func (e *Engine) Page(width int) view.Page {
	opts := e.viewOptions
	opts.Width = width
	return view.Project(e.Catalog.Snapshot(), e.Loads.State(domain.CollectionCatalog), opts)
}

// Recommendations returns the recommendation feed grouped into slides
// together with its load state.
func (e *Engine) Recommendations() ([][]domain.Product, domain.LoadState) {
	return view.Slides(e.Catalog.Recommendations(), view.RecommendationsPerSlide),
		e.Loads.State(domain.CollectionRecommendations)
}

// Load starts a background load of coll from the configured source. A
// catalog reload drops any cached copy first so it reads the primary source.
func (e *Engine) Load(ctx context.Context, coll domain.Collection) (*loader.Task, error) {
	switch coll {
	case domain.CollectionCatalog:
		return e.Loads.Load(ctx, coll, e.reloadCatalog)
	case domain.CollectionRecommendations:
		return e.Loads.Load(ctx, coll, func(ctx context.Context) ([]domain.Product, error) {
			return e.source.ListRecommendations(ctx, e.recommendationLimit)
		})
	}
	return nil, domain.ErrInvalidCollection
}

func (e *Engine) reloadCatalog(ctx context.Context) ([]domain.Product, error) {
	if inv, ok := e.source.(store.Invalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			e.logger.Warn("catalog cache invalidation failed", zap.Error(err))
		}
	}
	return e.source.ListProducts(ctx)
}

// LoadAll loads every collection and waits for both.
func (e *Engine) LoadAll(ctx context.Context) error {
	return e.Loads.LoadAll(ctx, e.source, e.recommendationLimit)
}
