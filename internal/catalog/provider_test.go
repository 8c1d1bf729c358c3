package catalog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewProvider_Embedded(t *testing.T) {
	p, err := NewProvider("", discardLogger())

	require.NoError(t, err)
	assert.Equal(t, 6, p.Current().Len())
	assert.NoError(t, p.Watch(context.Background()))
}

func TestProvider_WatchReloadsAndKeepsLastGood(t *testing.T) {
	defer goleak.VerifyNone(t)

	// given
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallCatalog), 0o600))
	reloaded := make(chan *Catalog, 4)
	p, err := NewProvider(path, discardLogger(),
		WithReloadDelay(20*time.Millisecond),
		WithReloadHook(func(c *Catalog) { reloaded <- c }),
	)
	require.NoError(t, err)
	initial := p.Current()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()
	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	// when: an invalid edit is ignored
	require.NoError(t, os.WriteFile(path, []byte("version: 1\nproducts:\n  - id: 1\n  - id: 1\n"), 0o600))
	time.Sleep(150 * time.Millisecond)
	assert.Same(t, initial, p.Current())

	// when: a valid edit replaces the catalog
	updated := smallCatalog + "  - id: 11\n    name: Hemp Tote\n    category: Accessories\n    price: 30\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	// then
	select {
	case c := <-reloaded:
		assert.Equal(t, 2, c.Len())
		assert.Same(t, c, p.Current())
	case <-time.After(3 * time.Second):
		t.Fatal("catalog was not reloaded")
	}

	cancel()
	require.NoError(t, <-done)
}
