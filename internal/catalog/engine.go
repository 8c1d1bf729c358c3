package catalog

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Engine answers catalog queries. It is safe for concurrent use; the only
// state it keeps is the facet set of the last catalog it saw.
type Engine struct {
	mu           sync.Mutex
	facetsOf     *Catalog
	facets       Facets
	computations int
}

func NewEngine() *Engine {
	return &Engine{}
}

// Apply filters and sorts the catalog. It never fails and never modifies c.
func (e *Engine) Apply(c *Catalog, spec FilterSpec) Result {
	products := c.Products()
	filtered := make([]Product, 0, len(products))
	for _, p := range products {
		if matches(p, spec) {
			filtered = append(filtered, p)
		}
	}
	sortProducts(filtered, spec.SortBy)

	return Result{
		Results:       filtered,
		Facets:        e.Facets(c),
		TotalCount:    len(products),
		FilteredCount: len(filtered),
	}
}

// Facets returns the facets of c, computing them only when c differs from the
// catalog of the previous call.
func (e *Engine) Facets(c *Catalog) Facets {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.facetsOf != c || e.computations == 0 {
		e.facets = ExtractFacets(c.Products())
		e.facetsOf = c
		e.computations++
	}
	return Facets{
		Categories:     slices.Clone(e.facets.Categories),
		Materials:      slices.Clone(e.facets.Materials),
		Certifications: slices.Clone(e.facets.Certifications),
	}
}

// ExtractFacets collects the distinct categories, material-source materials and
// certifications of products, each sorted ascending.
func ExtractFacets(products []Product) Facets {
	var categories, materials, certifications []string
	for _, p := range products {
		categories = append(categories, p.Category)
		for _, src := range p.MaterialSources {
			materials = append(materials, src.Material)
		}
		certifications = append(certifications, p.Certifications...)
	}
	return Facets{
		Categories:     distinctSorted(categories),
		Materials:      distinctSorted(materials),
		Certifications: distinctSorted(certifications),
	}
}

func distinctSorted(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		return []string{}
	}
	return out
}

func matches(p Product, spec FilterSpec) bool {
	if spec.Search != "" && !matchesSearch(p, strings.ToLower(spec.Search)) {
		return false
	}
	if len(spec.Categories) > 0 && !slices.Contains(spec.Categories, p.Category) {
		return false
	}
	if !spec.PriceRange.Contains(p.Price) {
		return false
	}
	if len(spec.Materials) > 0 && !slices.ContainsFunc(p.MaterialSources, func(src MaterialSource) bool {
		return slices.Contains(spec.Materials, src.Material)
	}) {
		return false
	}
	if len(spec.Certifications) > 0 && !slices.ContainsFunc(p.Certifications, func(cert string) bool {
		return slices.Contains(spec.Certifications, cert)
	}) {
		return false
	}
	return true
}

func matchesSearch(p Product, term string) bool {
	for _, field := range []string{p.Name, p.Category, p.Sustainability, p.Materials, p.Story, p.DetailedDescription} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	for _, src := range p.MaterialSources {
		for _, field := range []string{src.Material, src.Origin, src.Story} {
			if strings.Contains(strings.ToLower(field), term) {
				return true
			}
		}
	}
	return false
}

// sortProducts sorts in place with a stable sort. Unknown keys keep catalog order.
func sortProducts(products []Product, key SortKey) {
	switch key {
	case SortByName:
		// a Collator is not safe for concurrent use
		coll := collate.New(language.English)
		slices.SortStableFunc(products, func(a, b Product) int {
			return coll.CompareString(a.Name, b.Name)
		})
	case SortByPriceLow:
		slices.SortStableFunc(products, func(a, b Product) int {
			return cmp.Compare(a.Price, b.Price)
		})
	case SortByPriceHigh:
		slices.SortStableFunc(products, func(a, b Product) int {
			return cmp.Compare(b.Price, a.Price)
		})
	case SortBySustainability:
		slices.SortStableFunc(products, func(a, b Product) int {
			return cmp.Compare(len(b.Certifications), len(a.Certifications))
		})
	}
}
