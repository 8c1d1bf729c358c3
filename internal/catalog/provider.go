package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultReloadDelay = 200 * time.Millisecond

// Provider holds the active catalog. Readers get a consistent snapshot
// without locking; reloads swap the pointer.
type Provider struct {
	current     atomic.Pointer[Catalog]
	path        string
	reloadDelay time.Duration
	logger      *slog.Logger
	onReload    func(*Catalog)
}

type ProviderOption func(*Provider)

// WithReloadDelay sets how long Watch waits after the last file event before reloading.
func WithReloadDelay(d time.Duration) ProviderOption {
	return func(p *Provider) { p.reloadDelay = d }
}

// WithReloadHook is called with every catalog installed by Watch.
func WithReloadHook(fn func(*Catalog)) ProviderOption {
	return func(p *Provider) { p.onReload = fn }
}

// NewProvider loads the catalog from path, or the embedded catalog when path is empty.
func NewProvider(path string, logger *slog.Logger, opts ...ProviderOption) (*Provider, error) {
	p := &Provider{
		path:        path,
		reloadDelay: defaultReloadDelay,
		logger:      logger.With("component", "catalog"),
	}
	for _, opt := range opts {
		opt(p)
	}

	var (
		c   *Catalog
		err error
	)
	if path == "" {
		c, err = LoadEmbedded()
	} else {
		c, err = LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	p.current.Store(c)
	p.logger.Info("Catalog loaded", "source", p.source(), "products", c.Len())
	return p, nil
}

// StaticProvider serves a fixed catalog; Watch on it returns immediately.
func StaticProvider(c *Catalog) *Provider {
	p := &Provider{logger: slog.New(slog.DiscardHandler)}
	p.current.Store(c)
	return p
}

// Current returns the active catalog.
func (p *Provider) Current() *Catalog {
	return p.current.Load()
}

func (p *Provider) source() string {
	if p.path == "" {
		return "embedded"
	}
	return p.path
}

// Watch reloads the catalog file whenever it changes until ctx is done.
// An invalid file is logged and the previous catalog stays active.
// It returns nil immediately for the embedded catalog.
func (p *Provider) Watch(ctx context.Context) error {
	if p.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	defer watcher.Close()

	// editors often replace the file, so watch the directory and filter by name
	target := filepath.Clean(p.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}
	p.logger.Info("Watching catalog for changes", "file", target)

	timer := time.NewTimer(p.reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			timer.Reset(p.reloadDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("Catalog watcher error", "error", err)
		case <-timer.C:
			p.reload()
		}
	}
}

func (p *Provider) reload() {
	c, err := LoadFile(p.path)
	if err != nil {
		p.logger.Error("Catalog reload failed, keeping previous catalog", "error", err)
		return
	}
	p.current.Store(c)
	p.logger.Info("Catalog reloaded", "file", p.path, "products", c.Len())
	if p.onReload != nil {
		p.onReload(c)
	}
}
