// Package store provides the cart.Store implementations that persist serialized carts.
//
// Every implementation stores opaque blobs under a key and returns
// errors.ErrCartNotFound when a key has never been saved.
package store

import (
	"context"
	"time"

	"github.com/abgdnv/verdant/internal/cart"
)

var (
	_ cart.Store = (*Memory)(nil)
	_ cart.Store = (*File)(nil)
	_ cart.Store = (*SQLite)(nil)
	_ cart.Store = (*PgStore)(nil)
	_ cart.Store = (*NatsKV)(nil)
	_ cart.Store = (*Breaker)(nil)
	_ cart.Store = (*timeoutStore)(nil)
)

// timeoutStore bounds every call to the wrapped store.
type timeoutStore struct {
	next    cart.Store
	timeout time.Duration
}

// WithTimeout wraps s so that each Load and Save gets its own deadline.
func WithTimeout(s cart.Store, timeout time.Duration) cart.Store {
	if timeout <= 0 {
		return s
	}
	return &timeoutStore{next: s, timeout: timeout}
}

func (t *timeoutStore) Load(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Load(ctx, key)
}

func (t *timeoutStore) Save(ctx context.Context, key string, blob []byte) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Save(ctx, key, blob)
}
