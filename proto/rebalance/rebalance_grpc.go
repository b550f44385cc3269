// Package rebalancepb holds the gRPC contract of the rebalancer service.
//
// The messages are protobuf well-known types, so the service descriptor is
// declared by hand here instead of being generated from rebalance.proto.
package rebalancepb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "rebalance.Rebalancer"

	Rebalancer_Recommend_FullMethodName = "/rebalance.Rebalancer/Recommend"
	Rebalancer_GetRun_FullMethodName    = "/rebalance.Rebalancer/GetRun"
)

// RebalancerClient is the client API for the Rebalancer service.
type RebalancerClient interface {
	Recommend(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetRun(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type rebalancerClient struct {
	cc grpc.ClientConnInterface
}

func NewRebalancerClient(cc grpc.ClientConnInterface) RebalancerClient {
	return &rebalancerClient{cc: cc}
}

func (c *rebalancerClient) Recommend(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Rebalancer_Recommend_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rebalancerClient) GetRun(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Rebalancer_GetRun_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RebalancerServer is the server API for the Rebalancer service.
// Implementations must embed UnimplementedRebalancerServer.
type RebalancerServer interface {
	Recommend(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	mustEmbedUnimplementedRebalancerServer()
}

type UnimplementedRebalancerServer struct{}

func (UnimplementedRebalancerServer) Recommend(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Recommend not implemented")
}

func (UnimplementedRebalancerServer) GetRun(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRun not implemented")
}

func (UnimplementedRebalancerServer) mustEmbedUnimplementedRebalancerServer() {}

func RegisterRebalancerServer(s grpc.ServiceRegistrar, srv RebalancerServer) {
	s.RegisterService(&Rebalancer_ServiceDesc, srv)
}

func _Rebalancer_Recommend_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RebalancerServer).Recommend(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Rebalancer_Recommend_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RebalancerServer).Recommend(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _Rebalancer_GetRun_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RebalancerServer).GetRun(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Rebalancer_GetRun_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RebalancerServer).GetRun(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Rebalancer_ServiceDesc is the grpc.ServiceDesc for the Rebalancer service.
var Rebalancer_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RebalancerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Recommend",
			Handler:    _Rebalancer_Recommend_Handler,
		},
		{
			MethodName: "GetRun",
			Handler:    _Rebalancer_GetRun_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rebalance.proto",
}
