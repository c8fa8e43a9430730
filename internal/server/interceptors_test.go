package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const setMethod = "/grapio.v1.ControlService/SetFeatureFlag"

// stubHandler is a no-op gRPC handler used in interceptor tests.
func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

// stubStream is a grpc.ServerStream carrying only a context and headers.
type stubStream struct {
	grpc.ServerStream
	ctx    context.Context
	header metadata.MD
}

func (s *stubStream) Context() context.Context { return s.ctx }

func (s *stubStream) SetHeader(md metadata.MD) error {
	s.header = metadata.Join(s.header, md)
	return nil
}

func TestAuthInterceptor(t *testing.T) {
	for _, tc := range []struct {
		name   string
		token  string
		method string
		md     metadata.MD
		code   codes.Code
	}{
		{"Disabled", "", setMethod, nil, codes.OK},
		{"HealthExempt", "secret", "/grpc.health.v1.Health/Check", nil, codes.OK},
		{"HealthWatchExempt", "secret", "/grpc.health.v1.Health/Watch", nil, codes.OK},
		{"MissingMetadata", "secret", setMethod, nil, codes.Unauthenticated},
		{"MissingAuthHeader", "secret", setMethod, metadata.Pairs("other", "value"), codes.Unauthenticated},
		{"WrongToken", "secret", setMethod, metadata.Pairs("authorization", "Bearer wrong"), codes.Unauthenticated},
		{"InvalidScheme", "secret", setMethod, metadata.Pairs("authorization", "Basic secret"), codes.Unauthenticated},
		{"CorrectToken", "secret", setMethod, metadata.Pairs("authorization", "Bearer secret"), codes.OK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tc.md)
			}

			resp, err := AuthInterceptor(tc.token)(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tc.method}, stubHandler)
			if status.Code(err) != tc.code {
				t.Fatalf("unary: expected %v, got %v", tc.code, err)
			}
			if tc.code == codes.OK && resp != "ok" {
				t.Fatalf("expected 'ok', got %v", resp)
			}

			called := false
			err = StreamAuthInterceptor(tc.token)(nil, &stubStream{ctx: ctx}, &grpc.StreamServerInfo{FullMethod: tc.method}, func(any, grpc.ServerStream) error {
				called = true
				return nil
			})
			if status.Code(err) != tc.code {
				t.Fatalf("stream: expected %v, got %v", tc.code, err)
			}
			if called != (tc.code == codes.OK) {
				t.Fatalf("stream handler called=%v for code %v", called, tc.code)
			}
		})
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	_, err := RecoveryInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: setMethod}, func(context.Context, any) (any, error) {
		panic("boom")
	})
	requireCode(t, err, codes.Internal)

	err = StreamRecoveryInterceptor(nil, &stubStream{ctx: context.Background()}, &grpc.StreamServerInfo{FullMethod: setMethod}, func(any, grpc.ServerStream) error {
		panic("boom")
	})
	requireCode(t, err, codes.Internal)
}

func TestCorrelationInterceptor_Propagates(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("correlation-id", "req-abc"))
	var seen string
	_, err := CorrelationInterceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: setMethod}, func(ctx context.Context, _ any) (any, error) {
		seen = CorrelationID(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "req-abc" {
		t.Fatalf("expected correlation id req-abc, got %q", seen)
	}
}

func TestStreamCorrelationInterceptor_Generates(t *testing.T) {
	ss := &stubStream{ctx: context.Background()}
	var seen string
	err := StreamCorrelationInterceptor(nil, ss, &grpc.StreamServerInfo{FullMethod: setMethod}, func(_ any, stream grpc.ServerStream) error {
		seen = CorrelationID(stream.Context())
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(seen, "req-") {
		t.Fatalf("expected generated correlation id, got %q", seen)
	}
	if got := ss.header.Get("correlation-id"); len(got) != 1 || got[0] != seen {
		t.Fatalf("expected header echo of %q, got %v", seen, got)
	}
}

// --- HTTP middleware tests ---

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for _, tc := range []struct {
		name   string
		token  string
		path   string
		header string
		code   int
	}{
		{"NoHeader", "secret", "/v1/flags", "", http.StatusUnauthorized},
		{"WrongToken", "secret", "/v1/flags", "Bearer wrong", http.StatusUnauthorized},
		{"InvalidScheme", "secret", "/v1/flags", "Basic secret", http.StatusUnauthorized},
		{"CorrectToken", "secret", "/v1/flags", "Bearer secret", http.StatusOK},
		{"HealthExempt", "secret", "/v1/health", "", http.StatusOK},
		{"Disabled", "", "/v1/flags", "", http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tc.token, ok).ServeHTTP(rec, req)
			requireStatus(t, rec, tc.code)
		})
	}
}

func TestCorrelationMiddleware(t *testing.T) {
	var seen string
	handler := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/flags", nil)
	req.Header.Set(CorrelationHeader, "req-given")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "req-given" || rec.Header().Get(CorrelationHeader) != "req-given" {
		t.Fatalf("expected propagated id, got ctx=%q header=%q", seen, rec.Header().Get(CorrelationHeader))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/flags", nil))
	if !strings.HasPrefix(seen, "req-") || rec.Header().Get(CorrelationHeader) != seen {
		t.Fatalf("expected generated id, got ctx=%q header=%q", seen, rec.Header().Get(CorrelationHeader))
	}
}
