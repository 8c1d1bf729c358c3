// Package app contains the application setup for the storefront.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/verdant/internal/cart"
	"github.com/abgdnv/verdant/internal/catalog"
	"github.com/abgdnv/verdant/internal/config"
	"github.com/abgdnv/verdant/internal/notification"
	"github.com/abgdnv/verdant/internal/service"
	"github.com/abgdnv/verdant/internal/store"
	grpcImpl "github.com/abgdnv/verdant/internal/transport/grpc"
	"github.com/abgdnv/verdant/internal/transport/rest"
	pb "github.com/abgdnv/verdant/pkg/api/storefront/v1"
	"github.com/abgdnv/verdant/pkg/messaging"
	pnats "github.com/abgdnv/verdant/pkg/nats"
	"github.com/abgdnv/verdant/pkg/server"
	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type Dependencies struct {
	Catalog           *catalog.Provider
	Sessions          *cart.Sessions
	StorefrontService service.StorefrontService
	JetStream         jetstream.JetStream
	Logger            *slog.Logger

	closers []func()
}

// SetupDependencies connects to the configured backends and builds the storefront service.
// Close releases everything it opened, also when it returns an error.
func SetupDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (deps *Dependencies, err error) {
	deps = &Dependencies{Logger: logger}
	defer func() {
		if err != nil {
			deps.Close()
		}
	}()

	meter := otel.Meter("storefront-app")
	catalogReloads, err := meter.Int64Counter("catalog_reloads", metric.WithDescription("Number of catalog file reloads"))
	if err != nil {
		return deps, fmt.Errorf("failed to create catalog_reloads counter: %w", err)
	}
	persistFailures, err := meter.Int64Counter("cart_persist_failures", metric.WithDescription("Number of failed cart saves"))
	if err != nil {
		return deps, fmt.Errorf("failed to create cart_persist_failures counter: %w", err)
	}

	if cfg.NATS.Enabled() {
		nc, err := pnats.NewClient(cfg.NATS.Url, cfg.NATS.Timeout)
		if err != nil {
			return deps, err
		}
		deps.closers = append(deps.closers, nc.Close)
		if deps.JetStream, err = pnats.NewJetStreamContext(nc); err != nil {
			return deps, err
		}
		logger.Info("Successfully connected to NATS", "url", cfg.NATS.Url)
	}

	deps.Catalog, err = catalog.NewProvider(cfg.Catalog.File, logger,
		catalog.WithReloadDelay(cfg.Catalog.ReloadDelay),
		catalog.WithReloadHook(func(*catalog.Catalog) {
			catalogReloads.Add(context.Background(), 1)
		}),
	)
	if err != nil {
		return deps, fmt.Errorf("failed to load catalog: %w", err)
	}

	cartStore, closeStore, err := store.Open(ctx, cfg.Cart.Store, store.Deps{
		Database:  cfg.Database,
		JetStream: deps.JetStream,
		Logger:    logger,
	})
	if err != nil {
		return deps, fmt.Errorf("failed to open cart store: %w", err)
	}
	deps.closers = append(deps.closers, closeStore)

	driver := attribute.String("driver", cfg.Cart.Store.Driver)
	deps.Sessions = cart.NewSessions(cartStore, cfg.Cart.BaseKey, cfg.Cart.MaxSessions, logger,
		cart.WithPersistErrorHook(func(string, error) {
			persistFailures.Add(context.Background(), 1, metric.WithAttributes(driver))
		}),
	)

	publisher, err := setupPublisher(ctx, cfg, deps.JetStream)
	if err != nil {
		return deps, err
	}

	deps.StorefrontService = service.NewService(deps.Catalog, deps.Sessions, publisher, logger,
		service.WithCheckoutDelay(cfg.Checkout.Delay),
		service.WithCheckoutSubject(cfg.Checkout.Subject),
	)
	return deps, nil
}

// setupPublisher returns the JetStream publisher for checkout events, or a
// publisher that drops them when NATS is not configured.
func setupPublisher(ctx context.Context, cfg *config.Config, js jetstream.JetStream) (messaging.Publisher, error) {
	if js == nil {
		return messaging.NopPublisher{}, nil
	}
	if _, err := pnats.EnsureStream(ctx, js, cfg.Checkout.Stream, cfg.Checkout.Subject); err != nil {
		return nil, err
	}
	if cfg.Notification.Enabled && cfg.Notification.Stream != cfg.Checkout.Stream {
		if _, err := pnats.EnsureStream(ctx, js, cfg.Notification.Stream, cfg.Notification.Subject); err != nil {
			return nil, err
		}
	}
	return pnats.NewJetStreamPublisher(js), nil
}

// Close releases the connections opened by SetupDependencies in reverse order.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// SetupHttpHandler initializes the routes and middleware of the storefront HTTP API.
// Used by tests to exercise the full handler chain.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return otelhttp.NewHandler(mux, "storefront-http")
}

// wireRoutes sets up the HTTP routes for the storefront.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	handler := rest.NewHandler(deps.StorefrontService, deps.Logger)
	handler.RegisterRoutes(mux)
}

// SetupHttpServer creates and configures the HTTP server.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	return server.NewHTTPServer(cfg.HTTPServer, SetupHttpHandler(deps))
}

// SetupGrpcServer initializes the gRPC server with the storefront service and
// the standard health service registered. Both report SERVING until shutdown.
func SetupGrpcServer(deps *Dependencies, cfg *config.Config) (*grpc.Server, *health.Server) {
	var opts []grpc.ServerOption
	if cfg.GRPC.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(cfg.GRPC.MaxConcurrentStreams))
	}
	healthServer := health.NewServer()
	storefrontRegisterFunc := func(s *grpc.Server) {
		pb.RegisterStorefrontServer(s, grpcImpl.NewServer(deps.StorefrontService, deps.Logger))
		grpc_health_v1.RegisterHealthServer(s, healthServer)
	}
	grpcServer := server.NewGRPCServer(opts, storefrontRegisterFunc)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(pb.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return grpcServer, healthServer
}

// SetupConsumer returns the order confirmation consumer, or nil when it is disabled.
func SetupConsumer(deps *Dependencies, cfg *config.Config) *notification.Consumer {
	if !cfg.Notification.Enabled || deps.JetStream == nil {
		return nil
	}
	return notification.NewConsumer(deps.JetStream, cfg.Notification, nil, deps.Logger)
}
