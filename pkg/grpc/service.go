package grpc

import (
	"context"

	"github.com/example/citizenportal/pkg/models"
	"google.golang.org/grpc"
)

const orderServiceName = "portal.OrderService"

const (
	submitOrderMethod       = "/portal.OrderService/SubmitOrder"
	getOrderMethod          = "/portal.OrderService/GetOrder"
	listOrdersMethod        = "/portal.OrderService/ListOrders"
	updateOrderStatusMethod = "/portal.OrderService/UpdateOrderStatus"
)

// OrderServiceServer is implemented by the order service. Refusals are
// reported as gRPC status errors: InvalidArgument for malformed orders,
// FailedPrecondition and AlreadyExists for orders that cannot be placed.
type OrderServiceServer interface {
	SubmitOrder(context.Context, *models.OrderRequest) (*SubmitOrderReply, error)
	GetOrder(context.Context, *GetOrderRequest) (*OrderView, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersReply, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*OrderView, error)
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(OrderServiceServer, context.Context, *Req) (*Resp, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitOrder",
			Handler:    unaryHandler(submitOrderMethod, OrderServiceServer.SubmitOrder),
		},
		{
			MethodName: "GetOrder",
			Handler:    unaryHandler(getOrderMethod, OrderServiceServer.GetOrder),
		},
		{
			MethodName: "ListOrders",
			Handler:    unaryHandler(listOrdersMethod, OrderServiceServer.ListOrders),
		},
		{
			MethodName: "UpdateOrderStatus",
			Handler:    unaryHandler(updateOrderStatusMethod, OrderServiceServer.UpdateOrderStatus),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "portal/order.json",
}

// OrderServiceClient is the raw client side of OrderServiceServer.
type OrderServiceClient interface {
	SubmitOrder(ctx context.Context, in *models.OrderRequest, opts ...grpc.CallOption) (*SubmitOrderReply, error)
	GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderView, error)
	ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersReply, error)
	UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*OrderView, error)
}

type orderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) OrderServiceClient {
	return &orderServiceClient{cc}
}

func (c *orderServiceClient) SubmitOrder(ctx context.Context, in *models.OrderRequest, opts ...grpc.CallOption) (*SubmitOrderReply, error) {
	out := new(SubmitOrderReply)
	if err := c.cc.Invoke(ctx, submitOrderMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderView, error) {
	out := new(OrderView)
	if err := c.cc.Invoke(ctx, getOrderMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderServiceClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersReply, error) {
	out := new(ListOrdersReply)
	if err := c.cc.Invoke(ctx, listOrdersMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderServiceClient) UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*OrderView, error) {
	out := new(OrderView)
	if err := c.cc.Invoke(ctx, updateOrderStatusMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderServiceClient) callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
}
