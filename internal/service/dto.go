package service

import (
	"time"

	"github.com/abgdnv/verdant/internal/cart"
	"github.com/abgdnv/verdant/internal/catalog"
)

// ProductDto is a catalog product as returned to clients.
type ProductDto = catalog.Product

// FacetsDto lists the distinct filter values of the current catalog.
type FacetsDto = catalog.Facets

// FilterDto represents one catalog query. Nil prices fall back to the default range.
type FilterDto struct {
	Search         string   `json:"search" validate:"max=200"`
	Categories     []string `json:"categories" validate:"dive,notblank"`
	Materials      []string `json:"materials" validate:"dive,notblank"`
	Certifications []string `json:"certifications" validate:"dive,notblank"`
	MinPrice       *float64 `json:"min_price" validate:"omitempty,gte=0"`
	MaxPrice       *float64 `json:"max_price" validate:"omitempty,gte=0"`
	SortBy         string   `json:"sort_by" validate:"omitempty,oneof=name price-low price-high sustainability"`
}

// QueryResultDto is the outcome of a catalog query.
type QueryResultDto struct {
	Results       []ProductDto `json:"results"`
	Facets        FacetsDto    `json:"facets"`
	TotalCount    int          `json:"total_count"`
	FilteredCount int          `json:"filtered_count"`
}

type LineItemDto struct {
	ProductID      int     `json:"product_id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	Image          string  `json:"image"`
	Sustainability string  `json:"sustainability"`
	Materials      string  `json:"materials"`
	Size           string  `json:"size"`
	Quantity       int     `json:"quantity"`
	Subtotal       float64 `json:"subtotal"`
}

// CartDto is a consistent view of one session's cart.
type CartDto struct {
	SessionID  string        `json:"session_id"`
	Items      []LineItemDto `json:"items"`
	IsOpen     bool          `json:"is_open"`
	TotalItems int           `json:"total_items"`
	TotalPrice float64       `json:"total_price"`
}

// AddItemDto adds one unit of a catalog product in a size.
type AddItemDto struct {
	ProductID int    `json:"product_id" validate:"required,gt=0"`
	Size      string `json:"size" validate:"required,notblank,max=16"`
}

// UpdateQuantityDto sets the quantity of a line. Zero or less removes it.
type UpdateQuantityDto struct {
	ProductID int    `json:"product_id" validate:"required,gt=0"`
	Size      string `json:"size" validate:"required,notblank,max=16"`
	Quantity  int    `json:"quantity"`
}

// CheckoutReceiptDto confirms a simulated order.
type CheckoutReceiptDto struct {
	OrderID    string        `json:"order_id"`
	SessionID  string        `json:"session_id"`
	Lines      []LineItemDto `json:"lines"`
	TotalItems int           `json:"total_items"`
	TotalPrice float64       `json:"total_price"`
	PlacedAt   time.Time     `json:"placed_at"`
}

func toLineItemDtos(items []cart.LineItem) []LineItemDto {
	dtos := make([]LineItemDto, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, LineItemDto{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Price:          item.Price,
			Image:          item.Image,
			Sustainability: item.Sustainability,
			Materials:      item.Materials,
			Size:           item.Size,
			Quantity:       item.Quantity,
			Subtotal:       item.Subtotal(),
		})
	}
	return dtos
}

func toCartDto(sessionID string, state cart.State) *CartDto {
	return &CartDto{
		SessionID:  sessionID,
		Items:      toLineItemDtos(state.Items),
		IsOpen:     state.IsOpen,
		TotalItems: state.TotalItems,
		TotalPrice: state.TotalPrice,
	}
}

// toFilterSpec fills the defaults the query engine expects.
func toFilterSpec(f FilterDto) catalog.FilterSpec {
	spec := catalog.DefaultFilterSpec()
	spec.Search = f.Search
	spec.Categories = f.Categories
	spec.Materials = f.Materials
	spec.Certifications = f.Certifications
	if f.MinPrice != nil {
		spec.PriceRange.Min = *f.MinPrice
	}
	if f.MaxPrice != nil {
		spec.PriceRange.Max = *f.MaxPrice
	}
	if f.SortBy != "" {
		spec.SortBy = catalog.SortKey(f.SortBy)
	}
	return spec
}
