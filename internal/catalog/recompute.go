package catalog

import (
	"cmp"
	"slices"
	"strings"

	"product-catalog-engine/internal/domain"
)

// DerivedView is the filtered and sorted projection of the canonical items.
// A DerivedView is never modified after it is built; every change to items or
// criteria produces a new one.
type DerivedView struct {
	Items      []domain.Product `json:"items"`
	TotalItems int              `json:"total_items"`
}

// Recompute derives the view for items under c. It is a pure function: the
// input slice is not modified and equal inputs give equal outputs.
//
// Predicates are applied conjunctively and keep canonical order; the sort is
// stable, so products with equal keys keep their filtered order. The default
// sort key leaves the filtered order as is.
func Recompute(items []domain.Product, c domain.FilterCriteria) DerivedView {
	term := strings.ToLower(c.SearchTerm)
	filtered := make([]domain.Product, 0, len(items))
	for i := range items {
		if matches(&items[i], &c, term) {
			filtered = append(filtered, items[i])
		}
	}
	if less := comparator(c.SortBy); less != nil {
		slices.SortStableFunc(filtered, less)
	}
	return DerivedView{Items: filtered, TotalItems: len(filtered)}
}

// Matches reports whether p satisfies every predicate present in c.
func Matches(p domain.Product, c domain.FilterCriteria) bool {
	return matches(&p, &c, strings.ToLower(c.SearchTerm))
}

func matches(p *domain.Product, c *domain.FilterCriteria, lowerTerm string) bool {
	if c.Category != nil && p.Category != *c.Category {
		return false
	}
	// Bounds are inclusive on both sides.
	if c.MinPrice != nil && p.Price < *c.MinPrice {
		return false
	}
	if c.MaxPrice != nil && p.Price > *c.MaxPrice {
		return false
	}
	if lowerTerm != "" &&
		!strings.Contains(strings.ToLower(p.Name), lowerTerm) &&
		!strings.Contains(strings.ToLower(p.Description), lowerTerm) {
		return false
	}
	if len(c.Tags) > 0 && !p.HasAnyTag(c.Tags) {
		return false
	}
	if c.InStockOnly && !p.InStock {
		return false
	}
	return true
}

func comparator(key domain.SortKey) func(a, b domain.Product) int {
	switch key {
	case domain.SortPriceAsc:
		return func(a, b domain.Product) int { return cmp.Compare(a.Price, b.Price) }
	case domain.SortPriceDesc:
		return func(a, b domain.Product) int { return cmp.Compare(b.Price, a.Price) }
	case domain.SortRatingDesc:
		return func(a, b domain.Product) int { return cmp.Compare(b.Rating, a.Rating) }
	case domain.SortSalesDesc:
		return func(a, b domain.Product) int { return cmp.Compare(b.Sales, a.Sales) }
	case domain.SortNewest:
		return func(a, b domain.Product) int { return b.CreatedAt.Compare(a.CreatedAt) }
	default:
		return nil
	}
}
