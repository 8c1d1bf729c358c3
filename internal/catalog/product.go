// Package catalog holds the product catalog and the query engine that filters,
// sorts and extracts facets from it.
package catalog

import (
	"fmt"
	"slices"

	sferrors "github.com/abgdnv/verdant/internal/errors"
)

type MaterialSource struct {
	Material      string `yaml:"material" json:"material"`
	Origin        string `yaml:"origin" json:"origin"`
	Certification string `yaml:"certification" json:"certification"`
	Impact        string `yaml:"impact" json:"impact"`
	Supplier      string `yaml:"supplier" json:"supplier"`
	Story         string `yaml:"story" json:"story"`
}

type Product struct {
	ID                  int              `yaml:"id" json:"id"`
	Name                string           `yaml:"name" json:"name"`
	Category            string           `yaml:"category" json:"category"`
	Price               float64          `yaml:"price" json:"price"`
	Image               string           `yaml:"image" json:"image"`
	Sustainability      string           `yaml:"sustainability" json:"sustainability"`
	Materials           string           `yaml:"materials" json:"materials"`
	Story               string           `yaml:"story" json:"story"`
	DetailedDescription string           `yaml:"detailed_description" json:"detailed_description"`
	MaterialSources     []MaterialSource `yaml:"material_sources" json:"material_sources"`
	CarbonFootprint     string           `yaml:"carbon_footprint" json:"carbon_footprint"`
	WaterUsage          string           `yaml:"water_usage" json:"water_usage"`
	SocialImpact        string           `yaml:"social_impact" json:"social_impact"`
	Certifications      []string         `yaml:"certifications" json:"certifications"`
	CareInstructions    []string         `yaml:"care_instructions" json:"care_instructions"`
	SizingNote          string           `yaml:"sizing_note" json:"sizing_note"`
}

// Catalog is an immutable, ordered set of products with unique ids.
// A reload always produces a new *Catalog, so the pointer identifies the content.
type Catalog struct {
	products []Product
	index    map[int]int
}

// New validates products and builds a catalog that keeps their order.
func New(products []Product) (*Catalog, error) {
	c := &Catalog{
		products: slices.Clone(products),
		index:    make(map[int]int, len(products)),
	}
	for i, p := range c.products {
		if p.Price < 0 {
			return nil, fmt.Errorf("%w: product %d has negative price %v", sferrors.ErrInvalidProduct, p.ID, p.Price)
		}
		if _, dup := c.index[p.ID]; dup {
			return nil, fmt.Errorf("%w: %d", sferrors.ErrDuplicateProduct, p.ID)
		}
		c.index[p.ID] = i
	}
	return c, nil
}

// MustNew is New for static data known to be valid.
func MustNew(products []Product) *Catalog {
	c, err := New(products)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of products; a nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.products)
}

// Products returns the products in catalog order. The slice is a copy;
// nested slices are shared and must not be modified.
func (c *Catalog) Products() []Product {
	if c == nil {
		return nil
	}
	return slices.Clone(c.products)
}

// Product looks a product up by id.
func (c *Catalog) Product(id int) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}
