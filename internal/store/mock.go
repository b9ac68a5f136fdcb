package store

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"product-catalog-engine/internal/domain"
)

// ErrInjectedFailure is returned by MockSource when a simulated failure fires.
var ErrInjectedFailure = fmt.Errorf("%w: simulated failure", ErrSourceFailed)

// MockOptions configure MockSource.
type MockOptions struct {
	Count                 int
	Seed                  uint64
	CatalogLatency        time.Duration
	RecommendationLatency time.Duration
	FailureRate           float64   // probability in [0,1] that a call fails
	Now                   time.Time // anchor for created_at, zero means time.Now()
}

// DefaultMockOptions mirrors the demo storefront: 50 products, 800ms for the
// catalog and 500ms for recommendations.
func DefaultMockOptions() MockOptions {
	return MockOptions{
		Count:                 50,
		Seed:                  1,
		CatalogLatency:        800 * time.Millisecond,
		RecommendationLatency: 500 * time.Millisecond,
	}
}

var (
	mockNouns = map[domain.Category][]string{
		domain.CategoryElectronics: {"Wireless Earbuds", "Smart Watch", "Bluetooth Speaker"},
		domain.CategoryApparel:     {"Running Shoe", "Rain Jacket", "Wool Scarf"},
		domain.CategoryHome:        {"Desk Lamp", "Ceramic Mug", "Linen Pillow"},
		domain.CategoryFood:        {"Green Tea", "Dark Chocolate", "Coffee Beans"},
		domain.CategoryBeauty:      {"Face Cream", "Lip Balm", "Hand Lotion"},
	}
	mockTagSets = [][]string{{"hot", "new", "limited"}, {"sale", "recommended"}}
)

// MockSource generates a deterministic product set and serves it with
// simulated latency. It is safe for concurrent use.
type MockSource struct {
	opts     MockOptions
	products []domain.Product
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockSource generates opts.Count products from opts.Seed.
func NewMockSource(opts MockOptions, logger *zap.Logger) *MockSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	return &MockSource{
		opts:     opts,
		products: generateProducts(rng, opts.Count, opts.Now),
		logger:   logger.Named("mock_source"),
		rng:      rng,
	}
}

func generateProducts(r *rand.Rand, n int, now time.Time) []domain.Product {
	products := make([]domain.Product, 0, max(n, 0))
	for i := 0; i < n; i++ {
		category := domain.Categories[r.IntN(len(domain.Categories))]
		nouns := mockNouns[category]
		originalPrice := float64(r.IntN(1000) + 200)
		discount := r.IntN(50) + 10
		products = append(products, domain.Product{
			ID:            int64(i + 1),
			Name:          fmt.Sprintf("%s %d", nouns[r.IntN(len(nouns))], i+1),
			Price:         float64(r.IntN(900) + 100),
			OriginalPrice: &originalPrice,
			Discount:      &discount,
			Category:      category,
			Tags:          slices.Clone(mockTagSets[r.IntN(len(mockTagSets))]),
			Rating:        math.Round((r.Float64()*2+3)*2) / 2,
			Sales:         int64(r.IntN(1000)),
			ImageURL:      fmt.Sprintf("https://picsum.photos/id/%d/300/300", i+20),
			Description:   "A quality product; the description covers its features and advantages.",
			InStock:       r.Float64() > 0.1,
			CreatedAt:     now.Add(-time.Duration(r.Int64N(int64(30 * 24 * time.Hour)))),
		})
	}
	return products
}

// ListProducts returns the generated catalog after CatalogLatency.
func (m *MockSource) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if err := m.simulate(ctx, m.opts.CatalogLatency); err != nil {
		return nil, fmt.Errorf("store: ListProducts %w", err)
	}
	m.logger.Debug("served catalog", zap.Int("items", len(m.products)))
	return domain.CloneProducts(m.products), nil
}

// ListRecommendations returns limit products in random order after
// RecommendationLatency.
func (m *MockSource) ListRecommendations(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	if err := m.simulate(ctx, m.opts.RecommendationLatency); err != nil {
		return nil, fmt.Errorf("store: ListRecommendations %w", err)
	}
	shuffled := domain.CloneProducts(m.products)
	m.mu.Lock()
	m.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	m.mu.Unlock()
	return shuffled[:min(limit, len(shuffled))], nil
}

func (m *MockSource) simulate(ctx context.Context, latency time.Duration) error {
	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.opts.FailureRate <= 0 {
		return nil
	}
	m.mu.Lock()
	fail := m.rng.Float64() < m.opts.FailureRate
	m.mu.Unlock()
	if fail {
		return ErrInjectedFailure
	}
	return nil
}

