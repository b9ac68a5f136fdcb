// Package catalog holds the canonical product collection, the active
// criteria and cursor, and the derived view computed from them.
package catalog

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"product-catalog-engine/internal/domain"
	"product-catalog-engine/internal/metrics"
)

// Snapshot is a consistent read of the store: every field was read under
// the same lock, so View always corresponds to Criteria and the items counted
// by ItemCount.
type Snapshot struct {
	ItemCount       int                   `json:"item_count"`
	View            DerivedView           `json:"view"`
	Criteria        domain.FilterCriteria `json:"criteria"`
	Pagination      domain.Pagination     `json:"pagination"`
	Recommendations []domain.Product      `json:"recommendations"`
}

// Store owns the canonical items, criteria, cursor and derived view.
// Every mutating method recomputes the view before releasing the lock.
type Store struct {
	mu              sync.RWMutex
	items           []domain.Product
	index           map[int64]int
	recommendations []domain.Product
	criteria        domain.FilterCriteria
	pagination      domain.Pagination
	view            DerivedView
	logger          *zap.Logger
}

// NewStore creates an empty store. A non-positive pageSize falls back to
// domain.DefaultPageSize.
func NewStore(pageSize int, logger *zap.Logger) *Store {
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		index:      map[int64]int{},
		pagination: domain.Pagination{Page: 1, PageSize: pageSize},
		view:       DerivedView{Items: []domain.Product{}},
		logger:     logger.Named("catalog"),
	}
}

// ReplaceItems swaps the canonical collection, recomputes the view under the
// current criteria and resets the cursor to page 1.
func (s *Store) ReplaceItems(items []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = domain.CloneProducts(items)
	s.index = make(map[int64]int, len(s.items))
	for i := range s.items {
		s.index[s.items[i].ID] = i
	}
	s.pagination.Page = 1
	s.recomputeLocked("replace_items")
	metrics.CanonicalItems.Set(float64(len(s.items)))
	s.logger.Info("canonical items replaced",
		zap.Int("items", len(s.items)),
		zap.Int("total_items", s.view.TotalItems),
	)
}

// SetRecommendations replaces the recommendation snapshot. Recommendations
// are not filtered or sorted by the active criteria.
func (s *Store) SetRecommendations(items []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommendations = domain.CloneProducts(items)
	s.logger.Info("recommendations replaced", zap.Int("items", len(items)))
}

// UpdateCriteria merges patch into the current criteria, resets the cursor
// to page 1 and recomputes. An invalid patch changes nothing.
func (s *Store) UpdateCriteria(patch domain.CriteriaPatch) (DerivedView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := patch.Apply(s.criteria)
	if err != nil {
		s.logger.Debug("criteria update rejected", zap.Error(err))
		return s.viewLocked(), err
	}
	s.criteria = next
	s.pagination.Page = 1
	s.recomputeLocked("update_criteria")
	return s.viewLocked(), nil
}

// ResetCriteria clears every filter and the sort key, resets the cursor to
// page 1 and recomputes.
func (s *Store) ResetCriteria() DerivedView {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.criteria = domain.FilterCriteria{}
	s.pagination.Page = 1
	s.recomputeLocked("reset_criteria")
	return s.viewLocked()
}

// Recompute re-derives the view from the current items and criteria.
func (s *Store) Recompute() DerivedView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked("explicit")
	return s.viewLocked()
}

// SetPagination merges patch into the cursor. Unlike criteria changes it
// does not reset the page.
func (s *Store) SetPagination(patch domain.PaginationPatch) (domain.Pagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := patch.Apply(s.pagination)
	if err != nil {
		return s.pagination, err
	}
	s.pagination = next
	return s.pagination, nil
}

func (s *Store) recomputeLocked(trigger string) {
	start := time.Now()
	s.view = Recompute(s.items, s.criteria)
	metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
	metrics.Recomputations.WithLabelValues(trigger).Inc()
	metrics.FilteredItems.Set(float64(s.view.TotalItems))
}

// ItemCount returns the number of canonical items.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// View returns the current derived view. The returned slice is a copy.
func (s *Store) View() DerivedView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

func (s *Store) viewLocked() DerivedView {
	return DerivedView{Items: domain.CloneProducts(s.view.Items), TotalItems: s.view.TotalItems}
}

// Criteria returns a copy of the active criteria.
func (s *Store) Criteria() domain.FilterCriteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria.Clone()
}

// Pagination returns the current cursor.
func (s *Store) Pagination() domain.Pagination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pagination
}

// Recommendations returns a copy of the recommendation snapshot.
func (s *Store) Recommendations() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneProducts(s.recommendations)
}

// Lookup finds a canonical product by id, ignoring the active criteria.
func (s *Store) Lookup(id int64) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Product{}, false
	}
	return s.items[i].Clone(), true
}

// Snapshot reads every piece of state under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ItemCount:       len(s.items),
		View:            s.viewLocked(),
		Criteria:        s.criteria.Clone(),
		Pagination:      s.pagination,
		Recommendations: domain.CloneProducts(s.recommendations),
	}
}
