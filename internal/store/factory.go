package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abgdnv/verdant/internal/cart"
	"github.com/abgdnv/verdant/internal/config"
	sferrors "github.com/abgdnv/verdant/internal/errors"
	"github.com/abgdnv/verdant/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/verdant/pkg/config"
	"github.com/nats-io/nats.go/jetstream"
)

// Deps carries the shared connections a driver may need.
type Deps struct {
	Database  pkgconfig.DatabaseConfig
	JetStream jetstream.JetStream
	Logger    *slog.Logger
}

// Open builds the cart store selected by cfg.Driver, wrapped in the per-call
// timeout and, when enabled, the circuit breaker. The returned closer releases
// whatever the driver opened.
func Open(ctx context.Context, cfg config.CartStoreConfig, deps Deps) (cart.Store, func(), error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cart-store", "driver", cfg.Driver)

	var (
		s      cart.Store
		closer = func() {}
	)
	switch cfg.Driver {
	case config.DriverMemory:
		s = NewMemory()
	case config.DriverFile:
		f, err := NewFile(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		s = f
	case config.DriverSQLite:
		db, err := NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s = db
		closer = func() {
			if err := db.Close(); err != nil {
				logger.Error("failed to close sqlite database", "error", err)
			}
		}
	case config.DriverPostgres:
		if deps.Database.Migrate {
			if err := Migrate(deps.Database.URL); err != nil {
				return nil, nil, err
			}
			logger.Info("database migrations applied")
		}
		pool, err := bootstrap.NewDbPool(ctx, deps.Database.URL, deps.Database.Timeout)
		if err != nil {
			return nil, nil, err
		}
		s = NewPgStore(pool)
		closer = pool.Close
	case config.DriverNATS:
		if deps.JetStream == nil {
			return nil, nil, fmt.Errorf("nats cart store requires a JetStream connection")
		}
		kv, err := NewNatsKV(ctx, deps.JetStream, cfg.Bucket)
		if err != nil {
			return nil, nil, err
		}
		s = kv
	default:
		return nil, nil, fmt.Errorf("%w: %q", sferrors.ErrUnknownStoreDriver, cfg.Driver)
	}

	s = WithTimeout(s, cfg.Timeout)
	if cfg.Breaker.Enabled {
		s = NewBreaker(s, cfg.Breaker.CircuitBreakerConfig)
	}
	logger.Info("cart store opened", "breaker", cfg.Breaker.Enabled)
	return s, closer, nil
}
