package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	grapiov1 "github.com/alfredjeanlab/grapio/gen/grapio/v1"
	"github.com/alfredjeanlab/grapio/internal/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCClient implements FlagsClient using the gRPC transport.
type GRPCClient struct {
	conn     *grpc.ClientConn
	control  grapiov1.ControlServiceClient
	provider grapiov1.ProviderServiceClient
	health   healthpb.HealthClient
}

// bearerToken attaches an Authorization header to every RPC.
type bearerToken string

func (t bearerToken) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + string(t)}, nil
}

func (bearerToken) RequireTransportSecurity() bool { return false }

// NewGRPCClient connects to the given gRPC address and returns a client.
// When token is non-empty it is sent as a bearer token on every call.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	if token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerToken(token)))
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{
		conn:     conn,
		control:  grapiov1.NewControlServiceClient(conn),
		provider: grapiov1.NewProviderServiceClient(conn),
		health:   healthpb.NewHealthClient(conn),
	}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// --- Administration ---

func (c *GRPCClient) SetFlag(ctx context.Context, key, value, consumer string) (*Result, error) {
	resp, err := c.control.SetFeatureFlag(ctx, &grapiov1.FeatureFlagSetRequest{
		Key:      key,
		Value:    &value,
		Consumer: consumer,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Success: resp.Success, Message: resp.Message}, nil
}

func (c *GRPCClient) UnsetFlag(ctx context.Context, key, consumer string) (*Result, error) {
	resp, err := c.control.UnsetFeatureFlag(ctx, &grapiov1.FeatureFlagUnsetRequest{Key: key, Consumer: consumer})
	if err != nil {
		return nil, err
	}
	return &Result{Success: resp.Success, Message: resp.Message}, nil
}

func (c *GRPCClient) ListIdentities(ctx context.Context) ([]model.FlagIdentity, error) {
	stream, err := c.control.FetchFeatureFlags(ctx, &grapiov1.FeatureFlagsFetchRequest{})
	if err != nil {
		return nil, err
	}
	replies, err := recvAll(stream)
	if err != nil {
		return nil, err
	}
	ids := make([]model.FlagIdentity, 0, len(replies))
	for _, r := range replies {
		ids = append(ids, model.FlagIdentity{Key: r.Key, Consumer: r.Consumer})
	}
	return ids, nil
}

func (c *GRPCClient) ListByKey(ctx context.Context, key string) ([]*model.FeatureFlag, error) {
	stream, err := c.control.FetchFeatureFlagsByKey(ctx, &grapiov1.FeatureFlagFetchByKeyRequest{Key: key})
	if err != nil {
		return nil, err
	}
	return recvFlags(stream)
}

func (c *GRPCClient) ListByConsumer(ctx context.Context, consumer string) ([]*model.FeatureFlag, error) {
	stream, err := c.control.FetchFeatureFlagsByConsumer(ctx, &grapiov1.FeatureFlagFetchByConsumerRequest{Consumer: consumer})
	if err != nil {
		return nil, err
	}
	return recvFlags(stream)
}

func (c *GRPCClient) GetFlag(ctx context.Context, key, consumer string) (*model.FeatureFlag, bool, error) {
	resp, err := c.control.FetchFeatureFlagByKeyAndConsumer(ctx, &grapiov1.FeatureFlagFetchByKeyAndConsumerRequest{Key: key, Consumer: consumer})
	if err != nil {
		return nil, false, err
	}
	if !resp.IsPopulated {
		return nil, false, nil
	}
	return replyToFlag(resp), true, nil
}

// --- Consumption ---

func (c *GRPCClient) Resolve(ctx context.Context, requester string) ([]TypedFlag, error) {
	stream, err := c.provider.FetchFeatureFlags(ctx, &grapiov1.FeatureFlagsRequest{Requester: requester})
	if err != nil {
		return nil, err
	}
	replies, err := recvAll(stream)
	if err != nil {
		return nil, err
	}
	out := make([]TypedFlag, 0, len(replies))
	for _, r := range replies {
		out = append(out, replyToTyped(r))
	}
	return out, nil
}

// --- Health ---

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return "", err
	}
	return resp.GetStatus().String(), nil
}

// --- wire to model conversions ---

func recvAll[T any](stream grpc.ServerStreamingClient[T]) ([]*T, error) {
	var out []*T
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
}

func recvFlags(stream grpc.ServerStreamingClient[grapiov1.FeatureFlagFetchReply]) ([]*model.FeatureFlag, error) {
	replies, err := recvAll(stream)
	if err != nil {
		return nil, err
	}
	out := make([]*model.FeatureFlag, 0, len(replies))
	for _, r := range replies {
		out = append(out, replyToFlag(r))
	}
	return out, nil
}

func replyToFlag(r *grapiov1.FeatureFlagFetchReply) *model.FeatureFlag {
	return &model.FeatureFlag{Key: r.Key, Consumer: r.Consumer, Value: r.Value}
}

func replyToTyped(r *grapiov1.FeatureFlagReply) TypedFlag {
	t := TypedFlag{Key: r.GetKey()}
	switch {
	case r.BooleanValue != nil:
		t.Type, t.Value = "boolean", r.GetBooleanValue()
	case r.IntegerValue != nil:
		t.Type, t.Value = "integer", r.GetIntegerValue()
	case r.DoubleValue != nil:
		t.Type, t.Value = "double", r.GetDoubleValue()
	case r.StringValue != nil:
		t.Type, t.Value = "string", r.GetStringValue()
	default:
		t.Type, t.Value = "structured", string(r.GetStructureValue())
	}
	return t
}
