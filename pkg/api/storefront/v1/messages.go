package storefrontv1

import "time"

type MaterialSource struct {
	Material      string `json:"material"`
	Origin        string `json:"origin"`
	Certification string `json:"certification"`
	Impact        string `json:"impact"`
	Supplier      string `json:"supplier"`
	Story         string `json:"story"`
}

type Product struct {
	ID                  int              `json:"id"`
	Name                string           `json:"name"`
	Category            string           `json:"category"`
	Price               float64          `json:"price"`
	Image               string           `json:"image"`
	Sustainability      string           `json:"sustainability"`
	Materials           string           `json:"materials"`
	Story               string           `json:"story,omitempty"`
	DetailedDescription string           `json:"detailed_description,omitempty"`
	MaterialSources     []MaterialSource `json:"material_sources,omitempty"`
	CarbonFootprint     string           `json:"carbon_footprint,omitempty"`
	WaterUsage          string           `json:"water_usage,omitempty"`
	SocialImpact        string           `json:"social_impact,omitempty"`
	Certifications      []string         `json:"certifications,omitempty"`
	CareInstructions    []string         `json:"care_instructions,omitempty"`
	SizingNote          string           `json:"sizing_note,omitempty"`
}

type Facets struct {
	Categories     []string `json:"categories"`
	Materials      []string `json:"materials"`
	Certifications []string `json:"certifications"`
}

// QueryProductsRequest filters the catalog. Nil price bounds take the server defaults.
type QueryProductsRequest struct {
	Search         string   `json:"search,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	Materials      []string `json:"materials,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	MinPrice       *float64 `json:"min_price,omitempty"`
	MaxPrice       *float64 `json:"max_price,omitempty"`
	SortBy         string   `json:"sort_by,omitempty"`
}

type QueryProductsResponse struct {
	Products      []Product `json:"products"`
	Facets        Facets    `json:"facets"`
	TotalCount    int       `json:"total_count"`
	FilteredCount int       `json:"filtered_count"`
}

type GetProductRequest struct {
	ID int `json:"id"`
}

type GetProductResponse struct {
	Product Product `json:"product"`
}

type LineItem struct {
	ProductID      int     `json:"product_id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	Image          string  `json:"image"`
	Sustainability string  `json:"sustainability"`
	Materials      string  `json:"materials"`
	Size           string  `json:"size"`
	Quantity       int     `json:"quantity"`
}

type Cart struct {
	SessionID  string     `json:"session_id"`
	Items      []LineItem `json:"items"`
	IsOpen     bool       `json:"is_open"`
	TotalItems int        `json:"total_items"`
	TotalPrice float64    `json:"total_price"`
}

type GetCartRequest struct {
	SessionID string `json:"session_id"`
}

type AddItemRequest struct {
	SessionID string `json:"session_id"`
	ProductID int    `json:"product_id"`
	Size      string `json:"size"`
}

type UpdateQuantityRequest struct {
	SessionID string `json:"session_id"`
	ProductID int    `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type RemoveItemRequest struct {
	SessionID string `json:"session_id"`
	ProductID int    `json:"product_id"`
	Size      string `json:"size"`
}

type ClearCartRequest struct {
	SessionID string `json:"session_id"`
}

type CheckoutRequest struct {
	SessionID string `json:"session_id"`
}

type CheckoutResponse struct {
	OrderID    string    `json:"order_id"`
	Lines      int       `json:"lines"`
	TotalItems int       `json:"total_items"`
	TotalPrice float64   `json:"total_price"`
	PlacedAt   time.Time `json:"placed_at"`
}
