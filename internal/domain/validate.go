package domain

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator with the catalog-specific rules registered:
// "category" (enumerated Category) and "halfstep" (multiples of 0.5).
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("halfstep", func(fl validator.FieldLevel) bool {
		doubled := fl.Field().Float() * 2
		return doubled == math.Trunc(doubled)
	})
	return v
}

// ValidateProducts checks every product of a batch and rejects duplicate ids.
func ValidateProducts(v *validator.Validate, products []Product) error {
	seen := make(map[int64]struct{}, len(products))
	for i := range products {
		if err := v.Struct(products[i]); err != nil {
			return fmt.Errorf("%w: product %d: %v", ErrInvalidProduct, products[i].ID, err)
		}
		if _, dup := seen[products[i].ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidProduct, products[i].ID)
		}
		seen[products[i].ID] = struct{}{}
	}
	return nil
}
