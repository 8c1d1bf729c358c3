// Package errors provides the sentinel errors of the storefront.
package errors

import "errors"

// Catalog errors.
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidProduct   = errors.New("invalid product")
	ErrDuplicateProduct = errors.New("duplicate product id")
	ErrInvalidCatalog   = errors.New("invalid catalog document")
)

// Cart errors.
var (
	ErrInvalidItem          = errors.New("invalid cart item")
	ErrCartNotFound         = errors.New("cart not found")
	ErrCartEmpty            = errors.New("cart is empty")
	ErrCheckoutInProgress   = errors.New("checkout already in progress")
	ErrCartStoreUnavailable = errors.New("cart store unavailable")

	ErrInvalidSession = errors.New("invalid session id")
)

var ErrUnknownStoreDriver = errors.New("unknown cart store driver")
