package catalog

import (
	"os"
	"path/filepath"
	"testing"

	sferrors "github.com/abgdnv/verdant/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallCatalog = `version: 1
products:
  - id: 10
    name: Cork Belt
    category: Accessories
    price: 45.5
    material_sources:
      - material: Cork
        origin: Alentejo, Portugal
    certifications: [FSC]
`

func TestLoadEmbedded(t *testing.T) {
	c, err := LoadEmbedded()

	require.NoError(t, err)
	require.Equal(t, 6, c.Len())
	p, ok := c.Product(3)
	require.True(t, ok)
	assert.Equal(t, "Recycled Wool Outerwear", p.Name)
	assert.Equal(t, 198.0, p.Price)
	assert.Len(t, p.MaterialSources, 2)
	assert.Equal(t, []string{"GRS", "RCS", "OEKO-TEX", "Ocean Positive"}, p.Certifications)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"valid", smallCatalog, nil},
		{"unknown field", "version: 1\nproducts:\n  - id: 1\n    colour: red\n", sferrors.ErrInvalidCatalog},
		{"wrong version", "version: 2\nproducts: []\n", sferrors.ErrInvalidCatalog},
		{"not yaml", "{{{", sferrors.ErrInvalidCatalog},
		{"duplicate ids", "version: 1\nproducts:\n  - id: 1\n  - id: 1\n", sferrors.ErrDuplicateProduct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.doc))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			p, ok := c.Product(10)
			require.True(t, ok)
			assert.Equal(t, 45.5, p.Price)
			assert.Equal(t, "Cork", p.MaterialSources[0].Material)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallCatalog), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
