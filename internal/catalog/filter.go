package catalog

// SortKey selects the order of query results.
type SortKey string

const (
	SortByName           SortKey = "name"
	SortByPriceLow       SortKey = "price-low"
	SortByPriceHigh      SortKey = "price-high"
	SortBySustainability SortKey = "sustainability"
)

// SortKeys lists the supported keys.
var SortKeys = []SortKey{SortByName, SortByPriceLow, SortByPriceHigh, SortBySustainability}

// Valid reports whether k is one of SortKeys.
func (k SortKey) Valid() bool {
	switch k {
	case SortByName, SortByPriceLow, SortByPriceHigh, SortBySustainability:
		return true
	}
	return false
}

// PriceRange is the closed interval [Min, Max]. Min > Max matches nothing.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r PriceRange) Contains(price float64) bool {
	return price >= r.Min && price <= r.Max
}

const (
	DefaultMinPrice = 0
	DefaultMaxPrice = 500
)

// FilterSpec describes one catalog query. Empty sets and an empty search do not restrict.
type FilterSpec struct {
	Search         string     `json:"search"`
	Categories     []string   `json:"categories"`
	PriceRange     PriceRange `json:"price_range"`
	Materials      []string   `json:"materials"`
	Certifications []string   `json:"certifications"`
	SortBy         SortKey    `json:"sort_by"`
}

// DefaultFilterSpec matches every product priced within the default range, sorted by name.
func DefaultFilterSpec() FilterSpec {
	return FilterSpec{
		PriceRange: PriceRange{Min: DefaultMinPrice, Max: DefaultMaxPrice},
		SortBy:     SortByName,
	}
}

// Facets are the distinct filter choices present in a catalog, each sorted ascending.
type Facets struct {
	Categories     []string `json:"categories"`
	Materials      []string `json:"materials"`
	Certifications []string `json:"certifications"`
}

// Result is the outcome of Engine.Apply.
type Result struct {
	Results       []Product `json:"results"`
	Facets        Facets    `json:"facets"`
	TotalCount    int       `json:"total_count"`
	FilteredCount int       `json:"filtered_count"`
}
