package server

import (
	grapiov1 "github.com/alfredjeanlab/grapio/gen/grapio/v1"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// the control, provider and health services plus reflection, and returns
// the server ready to serve. When authToken is non-empty every RPC except
// health checks must carry it as a bearer token.
func (s *Server) NewGRPCServer(authToken string, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			CorrelationInterceptor,
			s.metrics.UnaryServerInterceptor(),
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
		grpc.ChainStreamInterceptor(
			StreamRecoveryInterceptor,
			StreamCorrelationInterceptor,
			s.metrics.StreamServerInterceptor(),
			StreamLoggingInterceptor,
			StreamAuthInterceptor(authToken),
		),
	)
	srv := grpc.NewServer(opts...)

	grapiov1.RegisterControlServiceServer(srv, s.Control)
	grapiov1.RegisterProviderServiceServer(srv, s.Provider)
	healthpb.RegisterHealthServer(srv, s.Health)
	reflection.Register(srv)

	return srv
}
