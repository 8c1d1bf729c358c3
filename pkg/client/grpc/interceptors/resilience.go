package interceptors

import (
	"context"

	"github.com/abgdnv/verdant/pkg/config"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/retry"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultBreakerName = "storefront-client-cb"

// transientCodes are retried and count as failures for the circuit breaker.
var transientCodes = []codes.Code{codes.Unavailable, codes.ResourceExhausted, codes.Aborted}

// NewRetryInterceptor creates a gRPC unary client interceptor with retry logic.
func NewRetryInterceptor(cfg config.RetryConfig) grpc.UnaryClientInterceptor {
	opts := []retry.CallOption{
		retry.WithCodes(transientCodes...),
		retry.WithMax(cfg.MaxAttempts),
		retry.WithBackoff(retry.BackoffExponential(cfg.InitialBackoff)),
	}
	return retry.UnaryClientInterceptor(opts...)
}

// UnaryCircuitBreakerInterceptor returns a gRPC unary client interceptor that wraps calls in a Circuit Breaker.
// The breaker's IsSuccessful decides which errors trip it.
func UnaryCircuitBreakerInterceptor[T any](cb *gobreaker.CircuitBreaker[T]) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		var zero T
		_, err := cb.Execute(func() (T, error) {
			return zero, invoker(ctx, method, req, reply, cc, opts...)
		})
		return err
	}
}

// BreakerSettings builds gobreaker settings from config. isFailure decides
// which non-nil errors count against the breaker.
func BreakerSettings(cfg config.CircuitBreakerConfig, isFailure func(error) bool) gobreaker.Settings {
	name := cfg.Name
	if name == "" {
		name = defaultBreakerName
	}
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures > cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isFailure(err)
		},
	}
}

// IsTransient reports whether err is a gRPC status with a transient code.
// Errors that are not gRPC statuses are treated as transient.
func IsTransient(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return true
	}
	for _, c := range transientCodes {
		if st.Code() == c {
			return true
		}
	}
	return false
}

// NewCircuitBreaker creates a breaker interceptor that trips only on transient
// errors, so NotFound or InvalidArgument replies never open it.
func NewCircuitBreaker(cfg config.CircuitBreakerConfig) grpc.UnaryClientInterceptor {
	breaker := gobreaker.NewCircuitBreaker[any](BreakerSettings(cfg, IsTransient))
	return UnaryCircuitBreakerInterceptor(breaker)
}
