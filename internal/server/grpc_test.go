package server

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	grapiov1 "github.com/alfredjeanlab/grapio/gen/grapio/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

const testToken = "secret"

// startBufconn serves s over an in-memory listener and returns a client
// connection to it.
func startBufconn(t *testing.T, s *Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := s.NewGRPCServer(testToken)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func authed(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+testToken)
}

// drain reads every message of a server stream.
func drain[T any](t *testing.T, stream grpc.ServerStreamingClient[T]) []*T {
	t.Helper()
	var out []*T
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		out = append(out, msg)
	}
}

func TestGRPC_RoundTrip(t *testing.T) {
	s, _, _ := newTestServer()
	conn := startBufconn(t, s)
	control := grapiov1.NewControlServiceClient(conn)
	provider := grapiov1.NewProviderServiceClient(conn)
	ctx := authed(context.Background())

	for _, req := range []*grapiov1.FeatureFlagSetRequest{
		{Key: "enabled", Value: strPtr("true")},
		{Key: "limit", Value: strPtr("42"), Consumer: "svc"},
		{Key: "ratio", Value: strPtr("2.5"), Consumer: "svc"},
		{Key: "label", Value: strPtr("blue")},
	} {
		resp, err := control.SetFeatureFlag(ctx, req)
		if err != nil {
			t.Fatalf("SetFeatureFlag(%s): %v", req.Key, err)
		}
		if !resp.Success {
			t.Fatalf("SetFeatureFlag(%s) failed: %s", req.Key, resp.Message)
		}
	}

	ids, err := control.FetchFeatureFlags(ctx, &grapiov1.FeatureFlagsFetchRequest{})
	if err != nil {
		t.Fatalf("FetchFeatureFlags: %v", err)
	}
	if got := drain(t, ids); len(got) != 4 {
		t.Fatalf("expected 4 identities, got %d", len(got))
	}

	byConsumer, err := control.FetchFeatureFlagsByConsumer(ctx, &grapiov1.FeatureFlagFetchByConsumerRequest{Consumer: "svc"})
	if err != nil {
		t.Fatalf("FetchFeatureFlagsByConsumer: %v", err)
	}
	for _, r := range drain(t, byConsumer) {
		if !r.IsPopulated {
			t.Fatalf("expected populated record, got %+v", r)
		}
	}

	typed, err := provider.FetchFeatureFlags(ctx, &grapiov1.FeatureFlagsRequest{Requester: "svc"})
	if err != nil {
		t.Fatalf("provider FetchFeatureFlags: %v", err)
	}
	got := map[string]*grapiov1.FeatureFlagReply{}
	for _, r := range drain(t, typed) {
		got[r.GetKey()] = r
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 typed flags, got %d", len(got))
	}
	if !got["enabled"].GetBooleanValue() || got["limit"].GetIntegerValue() != 42 ||
		got["ratio"].GetDoubleValue() != 2.5 || got["label"].GetStringValue() != "blue" {
		t.Fatalf("unexpected typed values: %+v", got)
	}
	if roster := s.Presence.Roster(0); len(roster) != 1 || roster[0].Consumer != "svc" || roster[0].LastTransport != "grpc" {
		t.Fatalf("expected svc in consumer roster, got %+v", roster)
	}

	miss, err := control.FetchFeatureFlagByKeyAndConsumer(ctx, &grapiov1.FeatureFlagFetchByKeyAndConsumerRequest{Key: "limit", Consumer: "other"})
	if err != nil {
		t.Fatalf("FetchFeatureFlagByKeyAndConsumer: %v", err)
	}
	if miss.IsPopulated {
		t.Fatalf("expected miss, got %+v", miss)
	}

	if _, err := control.UnsetFeatureFlag(ctx, &grapiov1.FeatureFlagUnsetRequest{Key: "limit", Consumer: "svc"}); err != nil {
		t.Fatalf("UnsetFeatureFlag: %v", err)
	}
	byKey, err := control.FetchFeatureFlagsByKey(ctx, &grapiov1.FeatureFlagFetchByKeyRequest{Key: "limit"})
	if err != nil {
		t.Fatalf("FetchFeatureFlagsByKey: %v", err)
	}
	if left := drain(t, byKey); len(left) != 0 {
		t.Fatalf("expected no records after unset, got %+v", left)
	}
}

func TestGRPC_AuthAndHealth(t *testing.T) {
	s, _, _ := newTestServer()
	conn := startBufconn(t, s)
	ctx := context.Background()

	_, err := grapiov1.NewControlServiceClient(conn).SetFeatureFlag(ctx, &grapiov1.FeatureFlagSetRequest{Key: "k", Value: strPtr("1")})
	requireCode(t, err, codes.Unauthenticated)

	stream, err := grapiov1.NewProviderServiceClient(conn).FetchFeatureFlags(ctx, &grapiov1.FeatureFlagsRequest{Requester: "svc"})
	if err == nil {
		_, err = stream.Recv()
	}
	requireCode(t, err, codes.Unauthenticated)

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}

func TestGRPC_ValidationAndCorrelation(t *testing.T) {
	s, _, _ := newTestServer()
	conn := startBufconn(t, s)
	ctx := metadata.AppendToOutgoingContext(authed(context.Background()), "correlation-id", "req-fixed")

	var header metadata.MD
	_, err := grapiov1.NewControlServiceClient(conn).SetFeatureFlag(ctx, &grapiov1.FeatureFlagSetRequest{Key: "k"}, grpc.Header(&header))
	requireCode(t, err, codes.InvalidArgument)
	if got := header.Get("correlation-id"); len(got) != 1 || got[0] != "req-fixed" {
		t.Fatalf("expected echoed correlation id, got %v", got)
	}
}
