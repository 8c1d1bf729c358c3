package store

import (
	"context"
	"errors"

	"github.com/abgdnv/verdant/internal/cart"
	sferrors "github.com/abgdnv/verdant/internal/errors"
	"github.com/abgdnv/verdant/pkg/client/grpc/interceptors"
	"github.com/abgdnv/verdant/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// Breaker guards a remote store with a circuit breaker. While the breaker is
// open calls fail immediately with gobreaker.ErrOpenState.
type Breaker struct {
	next cart.Store
	cb   *gobreaker.CircuitBreaker[[]byte]
}

// NewBreaker wraps next. A missing cart is a normal answer and never counts as a failure.
func NewBreaker(next cart.Store, cfg config.CircuitBreakerConfig) *Breaker {
	settings := interceptors.BreakerSettings(cfg, func(err error) bool {
		return !errors.Is(err, sferrors.ErrCartNotFound)
	})
	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

func (b *Breaker) Load(ctx context.Context, key string) ([]byte, error) {
	return b.cb.Execute(func() ([]byte, error) {
		return b.next.Load(ctx, key)
	})
}

func (b *Breaker) Save(ctx context.Context, key string, blob []byte) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Save(ctx, key, blob)
	})
	return err
}

// State reports the breaker state, for logs and tests.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
