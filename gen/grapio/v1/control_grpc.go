package grapiov1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ControlService_SetFeatureFlag_FullMethodName                   = "/grapio.v1.ControlService/SetFeatureFlag"
	ControlService_UnsetFeatureFlag_FullMethodName                 = "/grapio.v1.ControlService/UnsetFeatureFlag"
	ControlService_FetchFeatureFlags_FullMethodName                = "/grapio.v1.ControlService/FetchFeatureFlags"
	ControlService_FetchFeatureFlagsByKey_FullMethodName           = "/grapio.v1.ControlService/FetchFeatureFlagsByKey"
	ControlService_FetchFeatureFlagsByConsumer_FullMethodName      = "/grapio.v1.ControlService/FetchFeatureFlagsByConsumer"
	ControlService_FetchFeatureFlagByKeyAndConsumer_FullMethodName = "/grapio.v1.ControlService/FetchFeatureFlagByKeyAndConsumer"
)

// ControlServiceServer is the server API for the administrative service.
type ControlServiceServer interface {
	SetFeatureFlag(context.Context, *FeatureFlagSetRequest) (*FeatureFlagControlReply, error)
	UnsetFeatureFlag(context.Context, *FeatureFlagUnsetRequest) (*FeatureFlagControlReply, error)
	FetchFeatureFlags(*FeatureFlagsFetchRequest, grpc.ServerStreamingServer[FeatureFlagsFetchReply]) error
	FetchFeatureFlagsByKey(*FeatureFlagFetchByKeyRequest, grpc.ServerStreamingServer[FeatureFlagFetchReply]) error
	FetchFeatureFlagsByConsumer(*FeatureFlagFetchByConsumerRequest, grpc.ServerStreamingServer[FeatureFlagFetchReply]) error
	FetchFeatureFlagByKeyAndConsumer(context.Context, *FeatureFlagFetchByKeyAndConsumerRequest) (*FeatureFlagFetchReply, error)
	mustEmbedUnimplementedControlServiceServer()
}

// UnimplementedControlServiceServer must be embedded by implementations.
type UnimplementedControlServiceServer struct{}

func (UnimplementedControlServiceServer) SetFeatureFlag(context.Context, *FeatureFlagSetRequest) (*FeatureFlagControlReply, error) {
	return nil, status.Error(codes.Unimplemented, "method SetFeatureFlag not implemented")
}
func (UnimplementedControlServiceServer) UnsetFeatureFlag(context.Context, *FeatureFlagUnsetRequest) (*FeatureFlagControlReply, error) {
	return nil, status.Error(codes.Unimplemented, "method UnsetFeatureFlag not implemented")
}
func (UnimplementedControlServiceServer) FetchFeatureFlags(*FeatureFlagsFetchRequest, grpc.ServerStreamingServer[FeatureFlagsFetchReply]) error {
	return status.Error(codes.Unimplemented, "method FetchFeatureFlags not implemented")
}
func (UnimplementedControlServiceServer) FetchFeatureFlagsByKey(*FeatureFlagFetchByKeyRequest, grpc.ServerStreamingServer[FeatureFlagFetchReply]) error {
	return status.Error(codes.Unimplemented, "method FetchFeatureFlagsByKey not implemented")
}
func (UnimplementedControlServiceServer) FetchFeatureFlagsByConsumer(*FeatureFlagFetchByConsumerRequest, grpc.ServerStreamingServer[FeatureFlagFetchReply]) error {
	return status.Error(codes.Unimplemented, "method FetchFeatureFlagsByConsumer not implemented")
}
func (UnimplementedControlServiceServer) FetchFeatureFlagByKeyAndConsumer(context.Context, *FeatureFlagFetchByKeyAndConsumerRequest) (*FeatureFlagFetchReply, error) {
	return nil, status.Error(codes.Unimplemented, "method FetchFeatureFlagByKeyAndConsumer not implemented")
}
func (UnimplementedControlServiceServer) mustEmbedUnimplementedControlServiceServer() {}

// RegisterControlServiceServer registers srv on s.
func RegisterControlServiceServer(s grpc.ServiceRegistrar, srv ControlServiceServer) {
	s.RegisterService(&ControlService_ServiceDesc, srv)
}

// ControlService_ServiceDesc is the grpc.ServiceDesc for grapio.v1.ControlService.
var ControlService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "grapio.v1.ControlService",
	HandlerType: (*ControlServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SetFeatureFlag",
			Handler:    unaryHandler(ControlService_SetFeatureFlag_FullMethodName, ControlServiceServer.SetFeatureFlag),
		},
		{
			MethodName: "UnsetFeatureFlag",
			Handler:    unaryHandler(ControlService_UnsetFeatureFlag_FullMethodName, ControlServiceServer.UnsetFeatureFlag),
		},
		{
			MethodName: "FetchFeatureFlagByKeyAndConsumer",
			Handler:    unaryHandler(ControlService_FetchFeatureFlagByKeyAndConsumer_FullMethodName, ControlServiceServer.FetchFeatureFlagByKeyAndConsumer),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "FetchFeatureFlags",
			Handler:       serverStreamHandler(ControlServiceServer.FetchFeatureFlags),
			ServerStreams: true,
		},
		{
			StreamName:    "FetchFeatureFlagsByKey",
			Handler:       serverStreamHandler(ControlServiceServer.FetchFeatureFlagsByKey),
			ServerStreams: true,
		},
		{
			StreamName:    "FetchFeatureFlagsByConsumer",
			Handler:       serverStreamHandler(ControlServiceServer.FetchFeatureFlagsByConsumer),
			ServerStreams: true,
		},
	},
	Metadata: "grapio/v1/control.proto",
}

// ControlServiceClient is the client API for the administrative service.
type ControlServiceClient interface {
	SetFeatureFlag(ctx context.Context, in *FeatureFlagSetRequest, opts ...grpc.CallOption) (*FeatureFlagControlReply, error)
	UnsetFeatureFlag(ctx context.Context, in *FeatureFlagUnsetRequest, opts ...grpc.CallOption) (*FeatureFlagControlReply, error)
	FetchFeatureFlags(ctx context.Context, in *FeatureFlagsFetchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[FeatureFlagsFetchReply], error)
	FetchFeatureFlagsByKey(ctx context.Context, in *FeatureFlagFetchByKeyRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[FeatureFlagFetchReply], error)
	FetchFeatureFlagsByConsumer(ctx context.Context, in *FeatureFlagFetchByConsumerRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[FeatureFlagFetchReply], error)
	FetchFeatureFlagByKeyAndConsumer(ctx context.Context, in *FeatureFlagFetchByKeyAndConsumerRequest, opts ...grpc.CallOption) (*FeatureFlagFetchReply, error)
}

type controlServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewControlServiceClient returns a client that speaks the JSON codec over cc.
func NewControlServiceClient(cc grpc.ClientConnInterface) ControlServiceClient {
	return &controlServiceClient{cc: cc}
}

func (c *controlServiceClient) SetFeatureFlag(ctx context.Context, in *FeatureFlagSetRequest, opts ...grpc.CallOption) (*FeatureFlagControlReply, error) {
	return invoke[FeatureFlagControlReply](ctx, c.cc, ControlService_SetFeatureFlag_FullMethodName, in, opts)
}

func (c *controlServiceClient) UnsetFeatureFlag(ctx context.Context, in *FeatureFlagUnsetRequest, opts ...grpc.CallOption) (*FeatureFlagControlReply, error) {
	return invoke[FeatureFlagControlReply](ctx, c.cc, ControlService_UnsetFeatureFlag_FullMethodName, in, opts)
}

func (c *controlServiceClient) FetchFeatureFlagByKeyAndConsumer(ctx context.Context, in *FeatureFlagFetchByKeyAndConsumerRequest, opts ...grpc.CallOption) (*FeatureFlagFetchReply, error) {
	return invoke[FeatureFlagFetchReply](ctx, c.cc, ControlService_FetchFeatureFlagByKeyAndConsumer_FullMethodName, in, opts)
}

func (c *controlServiceClient) FetchFeatureFlags(ctx context.Context, in *FeatureFlagsFetchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[FeatureFlagsFetchReply], error) {
	return openServerStream[FeatureFlagsFetchRequest, FeatureFlagsFetchReply](ctx, c.cc,
		&ControlService_ServiceDesc.Streams[0], ControlService_FetchFeatureFlags_FullMethodName, in, opts)
}

func (c *controlServiceClient) FetchFeatureFlagsByKey(ctx context.Context, in *FeatureFlagFetchByKeyRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[FeatureFlagFetchReply], error) {
	return openServerStream[FeatureFlagFetchByKeyRequest, FeatureFlagFetchReply](ctx, c.cc,
		&ControlService_ServiceDesc.Streams[1], ControlService_FetchFeatureFlagsByKey_FullMethodName, in, opts)
}

func (c *controlServiceClient) FetchFeatureFlagsByConsumer(ctx context.Context, in *FeatureFlagFetchByConsumerRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[FeatureFlagFetchReply], error) {
	return openServerStream[FeatureFlagFetchByConsumerRequest, FeatureFlagFetchReply](ctx, c.cc,
		&ControlService_ServiceDesc.Streams[2], ControlService_FetchFeatureFlagsByConsumer_FullMethodName, in, opts)
}
