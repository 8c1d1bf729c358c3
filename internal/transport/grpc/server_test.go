package grpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/abgdnv/verdant/internal/cart"
	"github.com/abgdnv/verdant/internal/catalog"
	sferrors "github.com/abgdnv/verdant/internal/errors"
	"github.com/abgdnv/verdant/internal/service"
	pb "github.com/abgdnv/verdant/pkg/api/storefront/v1"
	"github.com/abgdnv/verdant/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func setup(t *testing.T) pb.StorefrontClient {
	t.Helper()
	c, err := catalog.LoadEmbedded()
	require.NoError(t, err)
	svc := service.NewService(catalog.StaticProvider(c), cart.NewSessions(nil, cart.DefaultBaseKey, 0, discard), nil, discard)

	lis := bufconn.Listen(1024 * 1024)
	s := server.NewGRPCServer(nil, func(s *grpc.Server) {
		pb.RegisterStorefrontServer(s, NewServer(svc, discard))
	})
	go func() { _ = s.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough://bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		s.Stop()
	})
	return pb.NewStorefrontClient(conn)
}

func TestServer_QueryProducts(t *testing.T) {
	// given
	client := setup(t)
	maxPrice := 100.0

	// when
	resp, err := client.QueryProducts(context.Background(), &pb.QueryProductsRequest{MaxPrice: &maxPrice, SortBy: "price-low"})

	// then
	require.NoError(t, err)
	ids := make([]int, 0, len(resp.Products))
	for _, p := range resp.Products {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int{5, 1, 6}, ids)
	assert.Equal(t, 6, resp.TotalCount)
	assert.Equal(t, 3, resp.FilteredCount)
	assert.Len(t, resp.Facets.Categories, 6)
}

func TestServer_GetProduct(t *testing.T) {
	client := setup(t)

	resp, err := client.GetProduct(context.Background(), &pb.GetProductRequest{ID: 4})
	require.NoError(t, err)
	assert.Equal(t, "Hemp Denim Line", resp.Product.Name)
	assert.NotEmpty(t, resp.Product.MaterialSources)
}

func TestServer_ErrorCodes(t *testing.T) {
	client := setup(t)
	ctx := context.Background()
	testCases := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{"unknown product", func() error {
			_, err := client.GetProduct(ctx, &pb.GetProductRequest{ID: 99})
			return err
		}, codes.NotFound},
		{"zero product id", func() error {
			_, err := client.GetProduct(ctx, &pb.GetProductRequest{ID: 0})
			return err
		}, codes.InvalidArgument},
		{"blank size", func() error {
			_, err := client.AddItem(ctx, &pb.AddItemRequest{SessionID: "s1", ProductID: 1, Size: " "})
			return err
		}, codes.InvalidArgument},
		{"bad sort", func() error {
			_, err := client.QueryProducts(ctx, &pb.QueryProductsRequest{SortBy: "random"})
			return err
		}, codes.InvalidArgument},
		{"empty checkout", func() error {
			_, err := client.Checkout(ctx, &pb.CheckoutRequest{SessionID: "s1"})
			return err
		}, codes.FailedPrecondition},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.Error(t, err)
			assert.Equal(t, tc.code, status.Code(err))
		})
	}
}

func TestServer_toStatus(t *testing.T) {
	s := NewServer(nil, discard)
	testCases := []struct {
		err  error
		code codes.Code
	}{
		{sferrors.ErrCheckoutInProgress, codes.Aborted},
		{sferrors.ErrCartStoreUnavailable, codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
	}
	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			err := s.toStatus(context.Background(), "Checkout", tc.err)
			assert.Equal(t, tc.code, status.Code(err))
		})
	}
}

func TestServer_CartFlow(t *testing.T) {
	// given
	client := setup(t)
	ctx := context.Background()

	// when
	_, err := client.AddItem(ctx, &pb.AddItemRequest{SessionID: "s1", ProductID: 2, Size: "S"})
	require.NoError(t, err)
	c, err := client.UpdateQuantity(ctx, &pb.UpdateQuantityRequest{SessionID: "s1", ProductID: 2, Size: "S", Quantity: 3})
	require.NoError(t, err)

	// then
	assert.Equal(t, 3, c.TotalItems)
	assert.InDelta(t, 372.0, c.TotalPrice, 1e-9)

	receipt, err := client.Checkout(ctx, &pb.CheckoutRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.Lines)
	assert.Equal(t, 3, receipt.TotalItems)

	c, err = client.GetCart(ctx, &pb.GetCartRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	_, err = client.AddItem(ctx, &pb.AddItemRequest{SessionID: "s1", ProductID: 2, Size: "S"})
	require.NoError(t, err)
	c, err = client.RemoveItem(ctx, &pb.RemoveItemRequest{SessionID: "s1", ProductID: 2, Size: "S"})
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	c, err = client.ClearCart(ctx, &pb.ClearCartRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Zero(t, c.TotalItems)
}
