package client

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/alfredjeanlab/grapio/internal/detect"
	"github.com/alfredjeanlab/grapio/internal/flags"
	"github.com/alfredjeanlab/grapio/internal/server"
	"github.com/alfredjeanlab/grapio/internal/store/sqlite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// newBackend starts a server over an in-memory SQLite store.
func newBackend(t *testing.T) *server.Server {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return server.New(flags.NewAdmin(st), flags.NewProvider(st, detect.New()), st, nil)
}

func newBufconnClient(t *testing.T, token string) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := newBackend(t).NewGRPCServer("secret")
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", token,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("NewGRPCClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// exercise runs the same administrative and consumer scenario on any client.
func exercise(t *testing.T, c FlagsClient) {
	t.Helper()
	ctx := context.Background()

	for _, f := range [][3]string{
		{"enabled", "true", ""},
		{"limit", "42", "svc"},
		{"limit", "7", "other"},
		{"shape", `{"a":1}`, "svc"},
	} {
		res, err := c.SetFlag(ctx, f[0], f[1], f[2])
		if err != nil {
			t.Fatalf("SetFlag(%v): %v", f, err)
		}
		if !res.Success {
			t.Fatalf("SetFlag(%v): %s", f, res.Message)
		}
	}

	res, err := c.SetFlag(ctx, "limit", "1", "")
	if err != nil {
		t.Fatalf("SetFlag conflict: %v", err)
	}
	if res.Success {
		t.Fatal("expected universal write on specific key to be rejected")
	}

	ids, err := c.ListIdentities(ctx)
	if err != nil || len(ids) != 4 {
		t.Fatalf("ListIdentities = %v, %v", ids, err)
	}

	all, err := ExportAll(ctx, c)
	if err != nil || len(all) != 4 {
		t.Fatalf("ExportAll = %v, %v", all, err)
	}

	flag, found, err := c.GetFlag(ctx, "limit", "svc")
	if err != nil || !found || flag.Value != "42" {
		t.Fatalf("GetFlag = %+v, %v, %v", flag, found, err)
	}

	typed, err := c.Resolve(ctx, "svc")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	byKey := map[string]TypedFlag{}
	for _, tf := range typed {
		byKey[tf.Key] = tf
	}
	if len(byKey) != 3 || byKey["enabled"].Value != true || byKey["limit"].Value != int32(42) ||
		byKey["shape"].Type != "structured" || byKey["shape"].Text() != `{"a":1}` {
		t.Fatalf("unexpected resolution %+v", byKey)
	}

	if _, err := c.UnsetFlag(ctx, "limit", "svc"); err != nil {
		t.Fatalf("UnsetFlag: %v", err)
	}
	if _, found, _ := c.GetFlag(ctx, "limit", "svc"); found {
		t.Fatal("expected flag to be gone")
	}

	if st, err := c.Health(ctx); err != nil || st == "" {
		t.Fatalf("Health = %q, %v", st, err)
	}
}

func TestGRPCClient_EndToEnd(t *testing.T) {
	exercise(t, newBufconnClient(t, "secret"))
}

func TestGRPCClient_Unauthenticated(t *testing.T) {
	c := newBufconnClient(t, "")
	_, err := c.SetFlag(context.Background(), "k", "v", "")
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestHTTPClient_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(newBackend(t).NewHTTPHandler("secret"))
	t.Cleanup(srv.Close)
	exercise(t, NewHTTPClient(srv.URL, "secret"))
}
