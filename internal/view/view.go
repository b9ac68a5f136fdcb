// Package view projects the derived catalog view into what a caller renders:
// the current page slice, the presentation mode and, in virtualized mode,
// the row layout.
package view

import (
	"product-catalog-engine/internal/catalog"
	"product-catalog-engine/internal/domain"
)

// Mode is how a caller presents the derived view.
type Mode string

const (
	ModePaged       Mode = "paged"
	ModeVirtualized Mode = "virtualized"
)

// DefaultVirtualizeThreshold is the item count above which the view is
// virtualized instead of paged.
const DefaultVirtualizeThreshold = 24

// PlaceholderRows is how many placeholder rows a loading view shows.
const PlaceholderRows = 4

// Status distinguishes "still loading" from an empty result.
type Status string

const (
	StatusLoading Status = "loading"
	StatusFailed  Status = "failed"
	StatusEmpty   Status = "empty"
	StatusReady   Status = "ready"
)

// PageSlice returns the items of page p. An offset past the end yields an
// empty slice, never an error. The result shares no memory with items.
func PageSlice(items []domain.Product, p domain.Pagination) []domain.Product {
	if p.Page <= 0 || p.PageSize <= 0 || p.Page-1 > len(items)/p.PageSize {
		return []domain.Product{}
	}
	start := (p.Page - 1) * p.PageSize
	if start >= len(items) {
		return []domain.Product{}
	}
	end := min(start+p.PageSize, len(items))
	out := make([]domain.Product, end-start)
	copy(out, items[start:end])
	return out
}

// TotalPages is the number of pages needed for total items, at least 1.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// PresentationMode classifies a result size. It has no state and does not
// alter the view.
func PresentationMode(total, threshold int) Mode {
	if total > threshold {
		return ModeVirtualized
	}
	return ModePaged
}

// Row is the half-open range [Start, End) of flat view indices shown on one
// virtualized row.
type Row struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Rows maps total items onto rows of itemsPerRow.
func Rows(total, itemsPerRow int) []Row {
	if total <= 0 || itemsPerRow <= 0 {
		return []Row{}
	}
	rows := make([]Row, 0, (total+itemsPerRow-1)/itemsPerRow)
	for start := 0; start < total; start += itemsPerRow {
		rows = append(rows, Row{Start: start, End: min(start+itemsPerRow, total)})
	}
	return rows
}

// ItemsPerRow picks the grid width for a viewport width in pixels.
// Zero or negative widths get the widest layout.
func ItemsPerRow(width int) int {
	switch {
	case width <= 0:
		return 4
	case width < 576:
		return 1
	case width < 768:
		return 2
	case width < 992:
		return 3
	default:
		return 4
	}
}

// RecommendationsPerSlide is the carousel page size for recommendations.
const RecommendationsPerSlide = 5

// Slides groups items into carousel slides of perSlide items each; the last
// slide may be shorter.
func Slides(items []domain.Product, perSlide int) [][]domain.Product {
	if perSlide <= 0 {
		perSlide = RecommendationsPerSlide
	}
	slides := make([][]domain.Product, 0, (len(items)+perSlide-1)/perSlide)
	for start := 0; start < len(items); start += perSlide {
		end := min(start+perSlide, len(items))
		slide := make([]domain.Product, end-start)
		copy(slide, items[start:end])
		slides = append(slides, slide)
	}
	return slides
}

// Options tune a projection.
type Options struct {
	VirtualizeThreshold int // <= 0 means DefaultVirtualizeThreshold
	Width               int // viewport width in pixels, 0 if unknown
}

// Page is a render-ready projection of a catalog snapshot.
type Page struct {
	Status        Status            `json:"status"`
	Mode          Mode              `json:"mode"`
	Items         []domain.Product  `json:"items"`
	Pagination    domain.Pagination `json:"pagination"`
	TotalItems    int               `json:"total_items"`
	TotalPages    int               `json:"total_pages"`
	ItemsPerRow   int               `json:"items_per_row"`
	Rows          []Row             `json:"rows,omitempty"`
	Placeholders  int               `json:"placeholders,omitempty"`
	ActiveFilters int               `json:"active_filters"`
	Load          domain.LoadState  `json:"load"`
}

// Project builds the page for snap given the catalog load state.
//
// While the first catalog load is pending the page is loading and carries
// placeholder rows instead of items. A reload keeps projecting the items
// already loaded. A rejected load with nothing loaded yet is failed. Zero
// matches after filtering is empty, which is distinct from loading.
//
// In paged mode Items is the current page; in virtualized mode Items is the
// whole derived view and Rows maps it onto the grid.
func Project(snap catalog.Snapshot, load domain.LoadState, opts Options) Page {
	threshold := opts.VirtualizeThreshold
	if threshold <= 0 {
		threshold = DefaultVirtualizeThreshold
	}
	perRow := ItemsPerRow(opts.Width)
	total := snap.View.TotalItems

	page := Page{
		Mode:          PresentationMode(total, threshold),
		Items:         []domain.Product{},
		Pagination:    snap.Pagination,
		TotalItems:    total,
		TotalPages:    TotalPages(total, snap.Pagination.PageSize),
		ItemsPerRow:   perRow,
		ActiveFilters: snap.Criteria.ActiveFilterCount(),
		Load:          load,
	}

	switch {
	case load.Pending() && snap.ItemCount == 0:
		page.Status = StatusLoading
		page.Placeholders = PlaceholderRows * perRow
		return page
	case load.Status == domain.LoadRejected && snap.ItemCount == 0:
		page.Status = StatusFailed
		return page
	case total == 0:
		page.Status = StatusEmpty
		return page
	}

	page.Status = StatusReady
	if page.Mode == ModeVirtualized {
		page.Items = snap.View.Items
		page.Rows = Rows(total, perRow)
		return page
	}
	page.Items = PageSlice(snap.View.Items, snap.Pagination)
	return page
}
