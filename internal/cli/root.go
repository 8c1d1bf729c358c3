// Package cli implements storefrontctl, a command line client for the storefront gRPC API.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	pb "github.com/abgdnv/verdant/pkg/api/storefront/v1"
	"github.com/abgdnv/verdant/pkg/client/grpc/interceptors"
	"github.com/abgdnv/verdant/pkg/config"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const (
	defaultAddr    = "localhost:9090"
	defaultTimeout = 5 * time.Second
	// sessionEnv lets a shell keep one cart across invocations.
	sessionEnv = "STOREFRONT_SESSION"
)

type options struct {
	client   config.GrpcClientConfig
	retry    config.RetryConfig
	session  string
	jsonOut  bool
	connect  func(ctx context.Context) (pb.StorefrontClient, func() error, error)
	override pb.StorefrontClient
	health   grpc_health_v1.HealthClient
}

// Option customizes the root command.
type Option func(*options)

// WithClient makes every command use c instead of dialing the server.
func WithClient(c pb.StorefrontClient) Option {
	return func(o *options) { o.override = c }
}

// WithHealthClient makes the health command use c instead of dialing the server.
func WithHealthClient(c grpc_health_v1.HealthClient) Option {
	return func(o *options) { o.health = c }
}

// NewRootCommand builds the storefrontctl command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	o := &options{
		retry: config.RetryConfig{MaxAttempts: 3, InitialBackoff: 100 * time.Millisecond},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.connect = o.dial

	root := &cobra.Command{
		Use:   "storefrontctl",
		Short: "Browse the Verdant catalog and manage a cart",
		Long: `storefrontctl talks to the storefront gRPC API. It queries the
sustainable fashion catalog and manages the cart of one session.

Pass --session (or set STOREFRONT_SESSION) to keep using the same cart.`,
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&o.client.Addr, "addr", defaultAddr, "storefront gRPC address")
	flags.DurationVar(&o.client.Timeout, "timeout", defaultTimeout, "timeout of a single call")
	flags.StringVar(&o.session, "session", os.Getenv(sessionEnv), "cart session id")
	flags.BoolVar(&o.jsonOut, "json", false, "print raw JSON")
	flags.UintVar(&o.retry.MaxAttempts, "retries", o.retry.MaxAttempts, "attempts for transient failures")

	root.AddCommand(
		newProductsCommand(o),
		newProductCommand(o),
		newFacetsCommand(o),
		newCartCommand(o),
		newHealthCommand(o),
	)
	return root
}

// Execute runs storefrontctl and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// dial opens a client with the timeout, retry and circuit breaker interceptors.
func (o *options) dial(_ context.Context) (pb.StorefrontClient, func() error, error) {
	if o.override != nil {
		return o.override, func() error { return nil }, nil
	}
	conn, err := o.dialConn()
	if err != nil {
		return nil, nil, err
	}
	return pb.NewStorefrontClient(conn), conn.Close, nil
}

// dialHealth opens a client of the standard gRPC health service.
func (o *options) dialHealth() (grpc_health_v1.HealthClient, func() error, error) {
	if o.health != nil {
		return o.health, func() error { return nil }, nil
	}
	conn, err := o.dialConn()
	if err != nil {
		return nil, nil, err
	}
	return grpc_health_v1.NewHealthClient(conn), conn.Close, nil
}

func (o *options) dialConn() (*grpc.ClientConn, error) {
	if err := o.client.Validate(); err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(
		o.client.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(
			interceptors.NewCircuitBreaker(config.CircuitBreakerConfig{
				Name:                "storefrontctl-cb",
				ConsecutiveFailures: 5,
				ErrorRatePercent:    60,
				OpenTimeout:         10 * time.Second,
			}),
			interceptors.NewRetryInterceptor(o.retry),
			interceptors.UnaryClientTimeoutInterceptor(o.client.Timeout),
		),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client connection: %w", err)
	}
	return conn, nil
}

// call runs fn with a connected client and prints its reply.
func call[T any](cmd *cobra.Command, o *options, fn func(ctx context.Context, c pb.StorefrontClient) (T, error), render func(io.Writer, T) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, closeFn, err := o.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	reply, err := fn(ctx, client)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if o.jsonOut || render == nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	}
	return render(out, reply)
}
