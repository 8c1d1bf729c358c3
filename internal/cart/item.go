// Package cart implements the shopping cart state container.
package cart

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Snapshot is a copy of the product display fields taken when the item is
// added. It is never re-synced with the catalog, so later catalog price
// changes do not affect items already in a cart.
type Snapshot struct {
	ProductID      int     `json:"id" validate:"gt=0"`
	Name           string  `json:"name"`
	Price          float64 `json:"price" validate:"gte=0"`
	Image          string  `json:"image"`
	Sustainability string  `json:"sustainability"`
	Materials      string  `json:"materials"`
}

// LineItem is one (product, size) pairing. Quantity is always positive.
type LineItem struct {
	Snapshot
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// Key identifies a line item.
type Key struct {
	ProductID int
	Size      string
}

func (i LineItem) Key() Key {
	return Key{ProductID: i.ProductID, Size: i.Size}
}

// Subtotal is price times quantity.
func (i LineItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// AddItemInput is the argument of Container.AddItem.
type AddItemInput struct {
	Snapshot
	Size string `json:"size" validate:"required,notblank,max=16"`
}

// State is a consistent view of a cart.
type State struct {
	Items      []LineItem `json:"items"`
	IsOpen     bool       `json:"is_open"`
	TotalItems int        `json:"total_items"`
	TotalPrice float64    `json:"total_price"`
}

// Store persists serialized carts. Load returns errors.ErrCartNotFound for unknown keys.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
}

// NewValidator returns a validator with the custom rules used by cart inputs.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}

func normalizeSize(size string) string {
	return strings.TrimSpace(size)
}
