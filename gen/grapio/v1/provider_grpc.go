package grapiov1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ProviderService_FetchFeatureFlags_FullMethodName = "/grapio.v1.ProviderService/FetchFeatureFlags"

// ProviderServiceServer is the server API for the consumer-facing service.
type ProviderServiceServer interface {
	FetchFeatureFlags(*FeatureFlagsRequest, grpc.ServerStreamingServer[FeatureFlagReply]) error
	mustEmbedUnimplementedProviderServiceServer()
}

// UnimplementedProviderServiceServer must be embedded by implementations.
type UnimplementedProviderServiceServer struct{}

func (UnimplementedProviderServiceServer) FetchFeatureFlags(*FeatureFlagsRequest, grpc.ServerStreamingServer[FeatureFlagReply]) error {
	return status.Error(codes.Unimplemented, "method FetchFeatureFlags not implemented")
}
func (UnimplementedProviderServiceServer) mustEmbedUnimplementedProviderServiceServer() {}

// RegisterProviderServiceServer registers srv on s.
func RegisterProviderServiceServer(s grpc.ServiceRegistrar, srv ProviderServiceServer) {
	s.RegisterService(&ProviderService_ServiceDesc, srv)
}

// ProviderService_ServiceDesc is the grpc.ServiceDesc for grapio.v1.ProviderService.
var ProviderService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "grapio.v1.ProviderService",
	HandlerType: (*ProviderServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "FetchFeatureFlags",
			Handler:       serverStreamHandler(ProviderServiceServer.FetchFeatureFlags),
			ServerStreams: true,
		},
	},
	Metadata: "grapio/v1/provider.proto",
}

// ProviderServiceClient is the client API for the consumer-facing service.
type ProviderServiceClient interface {
	FetchFeatureFlags(ctx context.Context, in *FeatureFlagsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[FeatureFlagReply], error)
}

type providerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewProviderServiceClient returns a client that speaks the JSON codec over cc.
func NewProviderServiceClient(cc grpc.ClientConnInterface) ProviderServiceClient {
	return &providerServiceClient{cc: cc}
}

func (c *providerServiceClient) FetchFeatureFlags(ctx context.Context, in *FeatureFlagsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[FeatureFlagReply], error) {
	return openServerStream[FeatureFlagsRequest, FeatureFlagReply](ctx, c.cc,
		&ProviderService_ServiceDesc.Streams[0], ProviderService_FetchFeatureFlags_FullMethodName, in, opts)
}
