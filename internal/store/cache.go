package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"product-catalog-engine/internal/domain"
)

const catalogKey = "catalog:products"

// CachedSource wraps a primary ProductSource with a Redis read-through cache
// for the catalog. Recommendations are random per call and pass through.
// Redis errors are logged and fall back to the primary.
type CachedSource struct {
	primary ProductSource
	rdb     *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCachedSource creates a cached wrapper around a primary source.
func NewCachedSource(primary ProductSource, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		logger:  logger.Named("cache"),
	}
}

// ListProducts checks Redis first and populates it on a miss.
func (s *CachedSource) ListProducts(ctx context.Context) ([]domain.Product, error) {
	data, err := s.rdb.Get(ctx, catalogKey).Bytes()
	if err == nil {
		var products []domain.Product
		if json.Unmarshal(data, &products) == nil {
			s.logger.Debug("catalog cache hit", zap.Int("items", len(products)))
			return products, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("catalog cache read failed", zap.Error(err))
	}

	products, err := s.primary.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(products); err == nil {
		if err := s.rdb.Set(ctx, catalogKey, data, s.ttl).Err(); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return products, nil
}

// ListRecommendations is not cached.
func (s *CachedSource) ListRecommendations(ctx context.Context, limit int) ([]domain.Product, error) {
	return s.primary.ListRecommendations(ctx, limit)
}

var _ Invalidator = (*CachedSource)(nil)

// Invalidate drops the cached catalog so the next read hits the primary.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	return s.rdb.Del(ctx, catalogKey).Err()
}
