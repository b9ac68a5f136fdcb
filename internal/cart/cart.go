// Package cart keeps the add-to-cart ledger: accumulated quantity per product.
package cart

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"go.uber.org/zap"

	"product-catalog-engine/internal/domain"
	"product-catalog-engine/internal/metrics"
)

// Aggregator owns the cart ledger. Adding a quantity for a product already
// in the ledger increments it; there is no decrement.
type Aggregator struct {
	mu     sync.Mutex
	ledger map[int64]int
	total  int
	logger *zap.Logger
}

// NewAggregator creates an empty ledger.
func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		ledger: map[int64]int{},
		logger: logger.Named("cart"),
	}
}

// Add accumulates qty for productID and returns the resulting line.
// A non-positive qty is rejected with domain.ErrInvalidQuantity and leaves the
// ledger untouched.
func (a *Aggregator) Add(productID int64, qty int) (domain.CartLine, error) {
	if qty <= 0 {
		return domain.CartLine{}, domain.ErrInvalidQuantity
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.ledger[productID]
	if cur > math.MaxInt-qty || a.total > math.MaxInt-qty {
		return domain.CartLine{ProductID: productID, Quantity: cur}, domain.ErrInvalidQuantity
	}
	a.ledger[productID] = cur + qty
	a.total += qty

	metrics.CartLines.Set(float64(len(a.ledger)))
	metrics.CartQuantity.Set(float64(a.total))
	a.logger.Debug("cart line updated",
		zap.Int64("product_id", productID),
		zap.Int("added", qty),
		zap.Int("quantity", cur+qty),
	)
	return domain.CartLine{ProductID: productID, Quantity: cur + qty}, nil
}

// Quantity returns the stored quantity for productID, 0 when absent.
func (a *Aggregator) Quantity(productID int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger[productID]
}

// Lines returns the ledger contents ordered by product id.
func (a *Aggregator) Lines() []domain.CartLine {
	a.mu.Lock()
	defer a.mu.Unlock()

	lines := make([]domain.CartLine, 0, len(a.ledger))
	for id, q := range a.ledger {
		lines = append(lines, domain.CartLine{ProductID: id, Quantity: q})
	}
	slices.SortFunc(lines, func(x, y domain.CartLine) int {
		return cmp.Compare(x.ProductID, y.ProductID)
	})
	return lines
}

// TotalQuantity is the sum of all line quantities.
func (a *Aggregator) TotalQuantity() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Len is the number of distinct products in the ledger.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ledger)
}
