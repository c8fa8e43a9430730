package server

import (
	"context"
	"errors"
	"log/slog"

	grapiov1 "github.com/alfredjeanlab/grapio/gen/grapio/v1"
	"github.com/alfredjeanlab/grapio/internal/detect"
	"github.com/alfredjeanlab/grapio/internal/flags"
	"github.com/alfredjeanlab/grapio/internal/metrics"
	"github.com/alfredjeanlab/grapio/internal/model"
	"github.com/alfredjeanlab/grapio/internal/presence"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/status"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server bundles the administrative and consumer-facing services with the
// dependencies their transports share.
type Server struct {
	Control  *ControlServer
	Provider *ProviderServer
	Health   *health.Server
	Presence *presence.Tracker

	pinger  Pinger
	metrics *metrics.Metrics
}

// New returns a Server over admin and provider. pinger backs the HTTP health
// check and m may be nil.
func New(admin *flags.Admin, provider *flags.Provider, pinger Pinger, m *metrics.Metrics) *Server {
	tracker := presence.New()
	return &Server{
		Control:  &ControlServer{admin: admin},
		Provider: &ProviderServer{provider: provider, presence: tracker},
		Health:   health.NewServer(),
		Presence: tracker,
		pinger:   pinger,
		metrics:  m,
	}
}

// ControlServer implements grapiov1.ControlServiceServer.
type ControlServer struct {
	grapiov1.UnimplementedControlServiceServer
	admin *flags.Admin
}

// SetFeatureFlag creates or updates a flag. A scoping conflict is an OK
// reply with success=false.
func (s *ControlServer) SetFeatureFlag(ctx context.Context, req *grapiov1.FeatureFlagSetRequest) (*grapiov1.FeatureFlagControlReply, error) {
	res, err := s.admin.Set(ctx, flags.SetRequest{
		Key:      req.GetKey(),
		Value:    req.Value,
		Consumer: req.GetConsumer(),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return resultToReply(res), nil
}

// UnsetFeatureFlag removes a flag; removing a missing flag succeeds.
func (s *ControlServer) UnsetFeatureFlag(ctx context.Context, req *grapiov1.FeatureFlagUnsetRequest) (*grapiov1.FeatureFlagControlReply, error) {
	res, err := s.admin.Unset(ctx, req.GetKey(), req.GetConsumer())
	if err != nil {
		return nil, toStatus(err)
	}
	return resultToReply(res), nil
}

// FetchFeatureFlags streams the identity of every stored flag.
func (s *ControlServer) FetchFeatureFlags(_ *grapiov1.FeatureFlagsFetchRequest, stream grpc.ServerStreamingServer[grapiov1.FeatureFlagsFetchReply]) error {
	ctx := stream.Context()
	for id, err := range s.admin.FetchAll(ctx) {
		if err != nil {
			return toStatus(err)
		}
		if err := stream.Send(&grapiov1.FeatureFlagsFetchReply{Key: id.Key, Consumer: id.Consumer}); err != nil {
			return err
		}
	}
	return nil
}

// FetchFeatureFlagsByKey streams every record for a key.
func (s *ControlServer) FetchFeatureFlagsByKey(req *grapiov1.FeatureFlagFetchByKeyRequest, stream grpc.ServerStreamingServer[grapiov1.FeatureFlagFetchReply]) error {
	list, err := s.admin.FetchByKey(stream.Context(), req.Key)
	if err != nil {
		return toStatus(err)
	}
	return sendFlags(stream, list)
}

// FetchFeatureFlagsByConsumer streams a consumer's records plus universal ones.
func (s *ControlServer) FetchFeatureFlagsByConsumer(req *grapiov1.FeatureFlagFetchByConsumerRequest, stream grpc.ServerStreamingServer[grapiov1.FeatureFlagFetchReply]) error {
	list, err := s.admin.FetchByConsumer(stream.Context(), req.Consumer)
	if err != nil {
		return toStatus(err)
	}
	return sendFlags(stream, list)
}

// FetchFeatureFlagByKeyAndConsumer looks up one record. A miss is an OK
// reply with is_populated=false.
func (s *ControlServer) FetchFeatureFlagByKeyAndConsumer(ctx context.Context, req *grapiov1.FeatureFlagFetchByKeyAndConsumerRequest) (*grapiov1.FeatureFlagFetchReply, error) {
	flag, found, err := s.admin.FetchByKeyAndConsumer(ctx, req.Key, req.Consumer)
	if err != nil {
		return nil, toStatus(err)
	}
	if !found {
		return &grapiov1.FeatureFlagFetchReply{IsPopulated: false}, nil
	}
	return flagToReply(flag), nil
}

func sendFlags(stream grpc.ServerStreamingServer[grapiov1.FeatureFlagFetchReply], list []*model.FeatureFlag) error {
	ctx := stream.Context()
	for _, f := range list {
		if err := ctx.Err(); err != nil {
			return toStatus(err)
		}
		if err := stream.Send(flagToReply(f)); err != nil {
			return err
		}
	}
	return nil
}

// ProviderServer implements grapiov1.ProviderServiceServer.
type ProviderServer struct {
	grapiov1.UnimplementedProviderServiceServer
	provider *flags.Provider
	presence *presence.Tracker
}

// FetchFeatureFlags streams the typed value of every flag visible to the
// requester. A value that cannot be classified ends the stream with Internal.
func (s *ProviderServer) FetchFeatureFlags(req *grapiov1.FeatureFlagsRequest, stream grpc.ServerStreamingServer[grapiov1.FeatureFlagReply]) error {
	n := 0
	err := s.provider.Resolve(stream.Context(), req.Requester, func(f flags.ResolvedFlag) error {
		n++
		return stream.Send(resolvedToReply(f))
	})
	if err != nil {
		return toStatus(err)
	}
	s.presence.Record(presence.Fetch{Consumer: req.Requester, Transport: "grpc", Flags: n})
	return nil
}

// toStatus maps domain errors onto gRPC status codes. Errors that already
// carry a status pass through.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, detect.ErrUnsupportedType):
		slog.Error("unsupported flag value", "error", err)
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
