package domain

import (
	"slices"
	"time"
)

// Category is the enumerated label a product is filed under.
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryApparel     Category = "apparel"
	CategoryHome        Category = "home"
	CategoryFood        Category = "food"
	CategoryBeauty      Category = "beauty"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryElectronics,
	CategoryApparel,
	CategoryHome,
	CategoryFood,
	CategoryBeauty,
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts a raw label into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

// Product represents a catalog item as delivered by a product source.
// The json tags correspond to the fields exposed in API responses.
type Product struct {
	ID            int64     `json:"id" validate:"gt=0"`
	Name          string    `json:"name" validate:"required,max=255"`
	Price         float64   `json:"price" validate:"gt=0"`
	OriginalPrice *float64  `json:"original_price,omitempty" validate:"omitempty,gt=0"` // Advisory only, may be <= Price
	Discount      *int      `json:"discount,omitempty" validate:"omitempty,gte=0,lte=100"`
	Category      Category  `json:"category" validate:"required,category"`
	Tags          []string  `json:"tags" validate:"dive,required"`
	Rating        float64   `json:"rating" validate:"gte=0,lte=5,halfstep"`
	Sales         int64     `json:"sales" validate:"gte=0"`
	ImageURL      string    `json:"image_url,omitempty" validate:"omitempty,url"`
	Description   string    `json:"description"`
	InStock       bool      `json:"in_stock"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasDiscount reports whether the product should be shown with a struck-through
// original price. OriginalPrice is never validated against Price, so callers
// rendering it must go through this check.
func (p Product) HasDiscount() bool {
	return p.OriginalPrice != nil && *p.OriginalPrice > p.Price
}

// HasAnyTag reports whether the product carries at least one of tags.
func (p Product) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range p.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// CartLine is one entry of the cart ledger.
type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Clone returns a copy of p that shares no memory with it.
func (p Product) Clone() Product {
	p.Tags = slices.Clone(p.Tags)
	if p.OriginalPrice != nil {
		v := *p.OriginalPrice
		p.OriginalPrice = &v
	}
	if p.Discount != nil {
		v := *p.Discount
		p.Discount = &v
	}
	return p
}

// CloneProducts deep-copies a batch.
func CloneProducts(in []Product) []Product {
	if in == nil {
		return nil
	}
	out := make([]Product, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
