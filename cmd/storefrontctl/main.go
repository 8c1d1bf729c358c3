// Package main is storefrontctl, a command line client for the storefront gRPC API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abgdnv/verdant/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
