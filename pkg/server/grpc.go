package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// RegistrationFunc registers a grpc service with the server.
type RegistrationFunc func(*grpc.Server)

// NewGRPCServer creates a gRPC server instrumented with otelgrpc and registers the given services.
func NewGRPCServer(opts []grpc.ServerOption, registerFunc ...RegistrationFunc) *grpc.Server {
	serverOpts := append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	grpcServer := grpc.NewServer(serverOpts...)

	for _, regFunc := range registerFunc {
		regFunc(grpcServer)
	}

	return grpcServer
}
