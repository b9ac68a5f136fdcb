package catalog

import (
	"errors"

	"product-catalog-engine/internal/domain"
)

// ErrUnknownPreset is returned for a price preset label that does not exist.
var ErrUnknownPreset = errors.New("catalog: unknown price preset")

// Availability counts canonical products by stock status.
type Availability struct {
	InStock    int `json:"in_stock"`
	OutOfStock int `json:"out_of_stock"`
}

// CategoryCount is the number of canonical products in one category.
type CategoryCount struct {
	Category domain.Category `json:"category"`
	Count    int             `json:"count"`
}

// PriceRange is the cheapest and most expensive canonical price.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Facets is the filter bar metadata: counts over the canonical items plus
// the number of active filters.
type Facets struct {
	Availability  Availability    `json:"availability"`
	Categories    []CategoryCount `json:"categories"`
	PriceRange    *PriceRange     `json:"price_range,omitempty"` // nil until items are loaded
	ActiveFilters int             `json:"active_filters"`
}

// Facets computes filter metadata from the canonical items.
func (s *Store) Facets() Facets {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := ComputeFacets(s.items)
	f.ActiveFilters = s.criteria.ActiveFilterCount()
	return f
}

// ComputeFacets aggregates availability, category counts and price range.
// Categories are reported in domain.Categories order, including empty ones.
func ComputeFacets(items []domain.Product) Facets {
	counts := make(map[domain.Category]int, len(domain.Categories))
	var f Facets
	for i, p := range items {
		if p.InStock {
			f.Availability.InStock++
		} else {
			f.Availability.OutOfStock++
		}
		counts[p.Category]++
		if i == 0 {
			f.PriceRange = &PriceRange{Min: p.Price, Max: p.Price}
			continue
		}
		f.PriceRange.Min = min(f.PriceRange.Min, p.Price)
		f.PriceRange.Max = max(f.PriceRange.Max, p.Price)
	}
	f.Categories = make([]CategoryCount, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		f.Categories = append(f.Categories, CategoryCount{Category: c, Count: counts[c]})
	}
	return f
}

// PriceSliderMax is the upper end of the price slider; a bound at either end
// of the slider means "unbounded" on that side.
const PriceSliderMax = 1000.0

// PricePreset is a quick-select price range.
type PricePreset struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// PricePresets are offered next to the price slider.
var PricePresets = []PricePreset{
	{Label: "0-100", Min: 0, Max: 100},
	{Label: "100-500", Min: 100, Max: 500},
	{Label: "500-1000", Min: 500, Max: 1000},
	{Label: "custom", Min: 0, Max: PriceSliderMax},
}

// PriceRangePatch converts a slider position into a criteria patch. A lower
// bound of 0 or an upper bound at PriceSliderMax clears that side.
func PriceRangePatch(lo, hi float64) domain.CriteriaPatch {
	patch := domain.CriteriaPatch{
		MinPrice: domain.Clear[float64](),
		MaxPrice: domain.Clear[float64](),
	}
	if lo > 0 {
		patch.MinPrice = domain.SetTo(lo)
	}
	if hi < PriceSliderMax {
		patch.MaxPrice = domain.SetTo(hi)
	}
	return patch
}

// PresetPatch returns the criteria patch for the preset with the given label.
func PresetPatch(label string) (domain.CriteriaPatch, error) {
	for _, p := range PricePresets {
		if p.Label == label {
			return PriceRangePatch(p.Min, p.Max), nil
		}
	}
	return domain.CriteriaPatch{}, ErrUnknownPreset
}
