package domain

import "errors"

// Errors returned for invalid commands. They are returned before any state
// is mutated, so a caller receiving one can assume nothing changed.
var (
	ErrInvalidCategory   = errors.New("domain: invalid category")
	ErrInvalidSortKey    = errors.New("domain: invalid sort key")
	ErrInvalidPriceRange = errors.New("domain: invalid price range")
	ErrInvalidPagination = errors.New("domain: page and page size must be positive")
	ErrInvalidQuantity   = errors.New("domain: quantity must be positive")
	ErrInvalidCollection = errors.New("domain: unknown collection")
	ErrInvalidProduct    = errors.New("domain: invalid product")
	ErrProductNotFound   = errors.New("domain: product not found")
	ErrOutOfStock        = errors.New("domain: product is out of stock")
)
