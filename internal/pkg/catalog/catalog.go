package catalog

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned for variants that were deleted or deactivated.
	ErrNotFound = errors.New("catalog variant not found")
	// ErrUnavailable marks transient failures talking to the catalog. Safe to retry.
	ErrUnavailable = errors.New("catalog unavailable")
)

// Variant is a point-in-time snapshot of a purchasable product variant.
type Variant struct {
	ID        uint   `json:"id"`
	ProductID uint   `json:"productId"`
	Price     int64  `json:"price"`
	Stock     int    `json:"stock"`
	Active    bool   `json:"active"`
	PetType   string `json:"petType,omitempty"`
	Category  string `json:"category,omitempty"`
}

// InStock reports whether the variant can currently be sold.
func (v Variant) InStock() bool {
	return v.Active && v.Stock > 0
}

// Provider resolves variants against the storefront catalog.
type Provider interface {
	GetVariant(ctx context.Context, variantID uint) (*Variant, error)
	// ListVariants returns every active variant of productID, in stock or not.
	// ErrNotFound means the product has no active variants.
	ListVariants(ctx context.Context, productID uint) ([]Variant, error)
}
