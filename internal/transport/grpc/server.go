// Package grpc provides the gRPC server of the storefront.
package grpc

import (
	"context"
	"errors"
	"log/slog"

	sferrors "github.com/abgdnv/verdant/internal/errors"
	"github.com/abgdnv/verdant/internal/service"
	pb "github.com/abgdnv/verdant/pkg/api/storefront/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Server struct {
	// Embed the unimplemented server for forward compatibility
	pb.UnimplementedStorefrontServer
	service service.StorefrontService
	logger  *slog.Logger
}

func NewServer(service service.StorefrontService, logger *slog.Logger) *Server {
	return &Server{service: service, logger: logger.With("component", "grpc")}
}

func (s *Server) QueryProducts(ctx context.Context, req *pb.QueryProductsRequest) (*pb.QueryProductsResponse, error) {
	result, err := s.service.QueryProducts(ctx, service.FilterDto{
		Search:         req.Search,
		Categories:     req.Categories,
		Materials:      req.Materials,
		Certifications: req.Certifications,
		MinPrice:       req.MinPrice,
		MaxPrice:       req.MaxPrice,
		SortBy:         req.SortBy,
	})
	if err != nil {
		return nil, s.toStatus(ctx, "QueryProducts", err)
	}
	products := make([]pb.Product, 0, len(result.Results))
	for _, p := range result.Results {
		products = append(products, toProduct(p))
	}
	return &pb.QueryProductsResponse{
		Products: products,
		Facets: pb.Facets{
			Categories:     result.Facets.Categories,
			Materials:      result.Facets.Materials,
			Certifications: result.Facets.Certifications,
		},
		TotalCount:    result.TotalCount,
		FilteredCount: result.FilteredCount,
	}, nil
}

func (s *Server) GetProduct(ctx context.Context, req *pb.GetProductRequest) (*pb.GetProductResponse, error) {
	if req.ID <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "invalid product ID: %d", req.ID)
	}
	p, err := s.service.FindProduct(ctx, req.ID)
	if err != nil {
		return nil, s.toStatus(ctx, "GetProduct", err)
	}
	return &pb.GetProductResponse{Product: toProduct(*p)}, nil
}

func (s *Server) GetCart(ctx context.Context, req *pb.GetCartRequest) (*pb.Cart, error) {
	c, err := s.service.Cart(ctx, req.SessionID)
	return s.cartReply(ctx, "GetCart", c, err)
}

func (s *Server) AddItem(ctx context.Context, req *pb.AddItemRequest) (*pb.Cart, error) {
	c, err := s.service.AddItem(ctx, req.SessionID, service.AddItemDto{ProductID: req.ProductID, Size: req.Size})
	return s.cartReply(ctx, "AddItem", c, err)
}

func (s *Server) UpdateQuantity(ctx context.Context, req *pb.UpdateQuantityRequest) (*pb.Cart, error) {
	c, err := s.service.UpdateQuantity(ctx, req.SessionID, service.UpdateQuantityDto{
		ProductID: req.ProductID,
		Size:      req.Size,
		Quantity:  req.Quantity,
	})
	return s.cartReply(ctx, "UpdateQuantity", c, err)
}

func (s *Server) RemoveItem(ctx context.Context, req *pb.RemoveItemRequest) (*pb.Cart, error) {
	c, err := s.service.RemoveItem(ctx, req.SessionID, req.ProductID, req.Size)
	return s.cartReply(ctx, "RemoveItem", c, err)
}

func (s *Server) ClearCart(ctx context.Context, req *pb.ClearCartRequest) (*pb.Cart, error) {
	c, err := s.service.ClearCart(ctx, req.SessionID)
	return s.cartReply(ctx, "ClearCart", c, err)
}

func (s *Server) Checkout(ctx context.Context, req *pb.CheckoutRequest) (*pb.CheckoutResponse, error) {
	receipt, err := s.service.Checkout(ctx, req.SessionID)
	if err != nil {
		return nil, s.toStatus(ctx, "Checkout", err)
	}
	return &pb.CheckoutResponse{
		OrderID:    receipt.OrderID,
		Lines:      len(receipt.Lines),
		TotalItems: receipt.TotalItems,
		TotalPrice: receipt.TotalPrice,
		PlacedAt:   receipt.PlacedAt,
	}, nil
}

func (s *Server) cartReply(ctx context.Context, method string, c *service.CartDto, err error) (*pb.Cart, error) {
	if err != nil {
		return nil, s.toStatus(ctx, method, err)
	}
	items := make([]pb.LineItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, pb.LineItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Price:          item.Price,
			Image:          item.Image,
			Sustainability: item.Sustainability,
			Materials:      item.Materials,
			Size:           item.Size,
			Quantity:       item.Quantity,
		})
	}
	return &pb.Cart{
		SessionID:  c.SessionID,
		Items:      items,
		IsOpen:     c.IsOpen,
		TotalItems: c.TotalItems,
		TotalPrice: c.TotalPrice,
	}, nil
}

// toStatus maps service errors to gRPC status codes.
func (s *Server) toStatus(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, sferrors.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, sferrors.ErrInvalidItem), errors.Is(err, sferrors.ErrInvalidSession):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, sferrors.ErrCartEmpty):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, sferrors.ErrCheckoutInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, sferrors.ErrCartStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	s.logger.ErrorContext(ctx, "service call failed", "method", method, "error", err)
	return status.Errorf(codes.Internal, "internal server error")
}

func toProduct(p service.ProductDto) pb.Product {
	sources := make([]pb.MaterialSource, 0, len(p.MaterialSources))
	for _, src := range p.MaterialSources {
		sources = append(sources, pb.MaterialSource(src))
	}
	return pb.Product{
		ID:                  p.ID,
		Name:                p.Name,
		Category:            p.Category,
		Price:               p.Price,
		Image:               p.Image,
		Sustainability:      p.Sustainability,
		Materials:           p.Materials,
		Story:               p.Story,
		DetailedDescription: p.DetailedDescription,
		MaterialSources:     sources,
		CarbonFootprint:     p.CarbonFootprint,
		WaterUsage:          p.WaterUsage,
		SocialImpact:        p.SocialImpact,
		Certifications:      p.Certifications,
		CareInstructions:    p.CareInstructions,
		SizingNote:          p.SizingNote,
	}
}
