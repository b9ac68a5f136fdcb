package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"
)

// SortKey selects the total order applied to the filtered products.
type SortKey string

const (
	SortDefault    SortKey = "" // keep filtered order
	SortPriceAsc   SortKey = "price-asc"
	SortPriceDesc  SortKey = "price-desc"
	SortRatingDesc SortKey = "rating-desc"
	SortSalesDesc  SortKey = "sales-desc"
	SortNewest     SortKey = "newest"
)

// SortKeys lists the non-default sort keys.
var SortKeys = []SortKey{SortNewest, SortPriceAsc, SortPriceDesc, SortRatingDesc, SortSalesDesc}

// Valid reports whether k is the default key or one of SortKeys.
func (k SortKey) Valid() bool {
	return k == SortDefault || slices.Contains(SortKeys, k)
}

// ParseSortKey converts a raw value into a SortKey.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(s)
	if !k.Valid() {
		return "", ErrInvalidSortKey
	}
	return k, nil
}

// FilterCriteria holds the user-specified filter and sort parameters.
// The zero value matches every product and keeps input order.
type FilterCriteria struct {
	Category    *Category `json:"category,omitempty"`
	MinPrice    *float64  `json:"min_price,omitempty"`
	MaxPrice    *float64  `json:"max_price,omitempty"`
	SearchTerm  string    `json:"search_term,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	InStockOnly bool      `json:"in_stock_only,omitempty"`
	SortBy      SortKey   `json:"sort_by,omitempty"`
}

// ActiveFilterCount counts the filters a user would see as active: search,
// category, price range (one regardless of how many bounds) and stock-only.
func (c FilterCriteria) ActiveFilterCount() int {
	n := 0
	if c.SearchTerm != "" {
		n++
	}
	if c.Category != nil {
		n++
	}
	if c.MinPrice != nil || c.MaxPrice != nil {
		n++
	}
	if c.InStockOnly {
		n++
	}
	return n
}

// Clone returns a deep copy so the result can be handed out without aliasing.
func (c FilterCriteria) Clone() FilterCriteria {
	out := c
	if c.Category != nil {
		v := *c.Category
		out.Category = &v
	}
	if c.MinPrice != nil {
		v := *c.MinPrice
		out.MinPrice = &v
	}
	if c.MaxPrice != nil {
		v := *c.MaxPrice
		out.MaxPrice = &v
	}
	out.Tags = slices.Clone(c.Tags)
	return out
}

// Optional is a patch field with three states: untouched (Set is false),
// set to a value, or explicitly cleared (Set with a nil Value).
// Decoding JSON follows merge-patch rules: an absent key leaves the field
// untouched and null clears it.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// SetTo returns an Optional carrying v.
func SetTo[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Clear returns an Optional that removes the field.
func Clear[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// CriteriaPatch is a partial criteria update.
type CriteriaPatch struct {
	Category    Optional[Category] `json:"category"`
	MinPrice    Optional[float64]  `json:"min_price"`
	MaxPrice    Optional[float64]  `json:"max_price"`
	SearchTerm  Optional[string]   `json:"search_term"`
	Tags        Optional[[]string] `json:"tags"`
	InStockOnly Optional[bool]     `json:"in_stock_only"`
	SortBy      Optional[SortKey]  `json:"sort_by"`
}

// Apply merges the patch into cur and returns the result. cur is not
// modified. Any invalid value rejects the whole patch.
func (p CriteriaPatch) Apply(cur FilterCriteria) (FilterCriteria, error) {
	next := cur.Clone()

	if p.Category.Set {
		if p.Category.Value == nil || *p.Category.Value == "" {
			next.Category = nil
		} else {
			c, err := ParseCategory(string(*p.Category.Value))
			if err != nil {
				return cur, err
			}
			next.Category = &c
		}
	}
	if p.MinPrice.Set {
		bound, err := priceBound(p.MinPrice.Value)
		if err != nil {
			return cur, err
		}
		next.MinPrice = bound
	}
	if p.MaxPrice.Set {
		bound, err := priceBound(p.MaxPrice.Value)
		if err != nil {
			return cur, err
		}
		next.MaxPrice = bound
	}
	if p.SearchTerm.Set {
		next.SearchTerm = ""
		if p.SearchTerm.Value != nil {
			next.SearchTerm = *p.SearchTerm.Value
		}
	}
	if p.Tags.Set {
		next.Tags = nil
		if p.Tags.Value != nil && len(*p.Tags.Value) > 0 {
			next.Tags = slices.Clone(*p.Tags.Value)
		}
	}
	if p.InStockOnly.Set {
		next.InStockOnly = p.InStockOnly.Value != nil && *p.InStockOnly.Value
	}
	if p.SortBy.Set {
		next.SortBy = SortDefault
		if p.SortBy.Value != nil {
			k, err := ParseSortKey(string(*p.SortBy.Value))
			if err != nil {
				return cur, err
			}
			next.SortBy = k
		}
	}

	if next.MinPrice != nil && next.MaxPrice != nil && *next.MinPrice > *next.MaxPrice {
		return cur, ErrInvalidPriceRange
	}
	return next, nil
}

func priceBound(v *float64) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return nil, ErrInvalidPriceRange
	}
	bound := *v
	return &bound, nil
}

// Pagination is the 1-based page cursor.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// DefaultPageSize matches the storefront grid of three rows of four.
const DefaultPageSize = 12

// DefaultPagination returns page 1 with DefaultPageSize.
func DefaultPagination() Pagination {
	return Pagination{Page: 1, PageSize: DefaultPageSize}
}

// PaginationPatch is a partial cursor update.
type PaginationPatch struct {
	Page     *int `json:"page,omitempty"`
	PageSize *int `json:"page_size,omitempty"`
}

// Apply merges the patch into cur. Non-positive values are rejected.
func (p PaginationPatch) Apply(cur Pagination) (Pagination, error) {
	next := cur
	if p.Page != nil {
		next.Page = *p.Page
	}
	if p.PageSize != nil {
		next.PageSize = *p.PageSize
	}
	if next.Page <= 0 || next.PageSize <= 0 {
		return cur, ErrInvalidPagination
	}
	return next, nil
}
