package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	sferrors "github.com/abgdnv/verdant/internal/errors"
	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml
var embeddedCatalog []byte

const documentVersion = 1

// document is the on-disk catalog format.
type document struct {
	Version  int       `yaml:"version"`
	Products []Product `yaml:"products"`
}

// Parse decodes a YAML catalog document. Unknown fields are rejected so that
// typos in a hand-edited catalog surface on load.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", sferrors.ErrInvalidCatalog, err)
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", sferrors.ErrInvalidCatalog, doc.Version)
	}
	return New(doc.Products)
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// LoadEmbedded returns the catalog compiled into the binary.
func LoadEmbedded() (*Catalog, error) {
	return Parse(embeddedCatalog)
}
