package storefrontv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "verdant.storefront.v1.Storefront"

const (
	QueryProductsMethod  = "/" + ServiceName + "/QueryProducts"
	GetProductMethod     = "/" + ServiceName + "/GetProduct"
	GetCartMethod        = "/" + ServiceName + "/GetCart"
	AddItemMethod        = "/" + ServiceName + "/AddItem"
	UpdateQuantityMethod = "/" + ServiceName + "/UpdateQuantity"
	RemoveItemMethod     = "/" + ServiceName + "/RemoveItem"
	ClearCartMethod      = "/" + ServiceName + "/ClearCart"
	CheckoutMethod       = "/" + ServiceName + "/Checkout"
)

// StorefrontServer is the server API for the Storefront service.
type StorefrontServer interface {
	QueryProducts(context.Context, *QueryProductsRequest) (*QueryProductsResponse, error)
	GetProduct(context.Context, *GetProductRequest) (*GetProductResponse, error)
	GetCart(context.Context, *GetCartRequest) (*Cart, error)
	AddItem(context.Context, *AddItemRequest) (*Cart, error)
	UpdateQuantity(context.Context, *UpdateQuantityRequest) (*Cart, error)
	RemoveItem(context.Context, *RemoveItemRequest) (*Cart, error)
	ClearCart(context.Context, *ClearCartRequest) (*Cart, error)
	Checkout(context.Context, *CheckoutRequest) (*CheckoutResponse, error)
}

// UnimplementedStorefrontServer can be embedded to have forward compatible implementations.
type UnimplementedStorefrontServer struct{}

func (UnimplementedStorefrontServer) QueryProducts(context.Context, *QueryProductsRequest) (*QueryProductsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method QueryProducts not implemented")
}
func (UnimplementedStorefrontServer) GetProduct(context.Context, *GetProductRequest) (*GetProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetProduct not implemented")
}
func (UnimplementedStorefrontServer) GetCart(context.Context, *GetCartRequest) (*Cart, error) {
	return nil, status.Error(codes.Unimplemented, "method GetCart not implemented")
}
func (UnimplementedStorefrontServer) AddItem(context.Context, *AddItemRequest) (*Cart, error) {
	return nil, status.Error(codes.Unimplemented, "method AddItem not implemented")
}
func (UnimplementedStorefrontServer) UpdateQuantity(context.Context, *UpdateQuantityRequest) (*Cart, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateQuantity not implemented")
}
func (UnimplementedStorefrontServer) RemoveItem(context.Context, *RemoveItemRequest) (*Cart, error) {
	return nil, status.Error(codes.Unimplemented, "method RemoveItem not implemented")
}
func (UnimplementedStorefrontServer) ClearCart(context.Context, *ClearCartRequest) (*Cart, error) {
	return nil, status.Error(codes.Unimplemented, "method ClearCart not implemented")
}
func (UnimplementedStorefrontServer) Checkout(context.Context, *CheckoutRequest) (*CheckoutResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Checkout not implemented")
}

// RegisterStorefrontServer registers srv with s.
func RegisterStorefrontServer(s grpc.ServiceRegistrar, srv StorefrontServer) {
	s.RegisterService(&StorefrontServiceDesc, srv)
}

// unaryHandler adapts a typed server method to a grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(StorefrontServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StorefrontServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StorefrontServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// StorefrontServiceDesc is the grpc.ServiceDesc for the Storefront service.
var StorefrontServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorefrontServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "QueryProducts", Handler: unaryHandler(QueryProductsMethod, StorefrontServer.QueryProducts)},
		{MethodName: "GetProduct", Handler: unaryHandler(GetProductMethod, StorefrontServer.GetProduct)},
		{MethodName: "GetCart", Handler: unaryHandler(GetCartMethod, StorefrontServer.GetCart)},
		{MethodName: "AddItem", Handler: unaryHandler(AddItemMethod, StorefrontServer.AddItem)},
		{MethodName: "UpdateQuantity", Handler: unaryHandler(UpdateQuantityMethod, StorefrontServer.UpdateQuantity)},
		{MethodName: "RemoveItem", Handler: unaryHandler(RemoveItemMethod, StorefrontServer.RemoveItem)},
		{MethodName: "ClearCart", Handler: unaryHandler(ClearCartMethod, StorefrontServer.ClearCart)},
		{MethodName: "Checkout", Handler: unaryHandler(CheckoutMethod, StorefrontServer.Checkout)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1",
}
