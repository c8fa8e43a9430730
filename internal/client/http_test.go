package client

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	rawPath     string // URL-encoded path (for testing PathEscape)
	query       string
	body        string
	contentType string
	auth        string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.rawPath = r.URL.RawPath
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(t *testing.T, h http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", "tok")
}

func TestHTTPClient_SetFlag(t *testing.T) {
	h := &testHandler{responseBody: `{"success":true,"message":"Successfully set (a/b,web)."}`}
	c := newTestClient(t, h)

	res, err := c.SetFlag(context.Background(), "a/b", "true", "web")
	if err != nil {
		t.Fatalf("SetFlag() error = %v", err)
	}
	if h.method != http.MethodPut {
		t.Errorf("method = %q, want PUT", h.method)
	}
	if h.rawPath != "/v1/flags/a%2Fb" {
		t.Errorf("raw path = %q, want /v1/flags/a%%2Fb", h.rawPath)
	}
	if h.contentType != "application/json" {
		t.Errorf("content-type = %q, want application/json", h.contentType)
	}
	if h.auth != "Bearer tok" {
		t.Errorf("authorization = %q, want Bearer tok", h.auth)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(h.body), &body); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}
	if body["value"] != "true" || body["consumer"] != "web" {
		t.Errorf("request body = %v", body)
	}
	if !res.Success {
		t.Errorf("expected success, got %+v", res)
	}
}

func TestHTTPClient_UnsetFlag(t *testing.T) {
	h := &testHandler{responseBody: `{"success":true,"message":"ok"}`}
	c := newTestClient(t, h)

	if _, err := c.UnsetFlag(context.Background(), "k", "svc"); err != nil {
		t.Fatalf("UnsetFlag() error = %v", err)
	}
	if h.method != http.MethodDelete || h.path != "/v1/flags/k" || h.query != "consumer=svc" {
		t.Errorf("got %s %s?%s", h.method, h.path, h.query)
	}

	if _, err := c.UnsetFlag(context.Background(), "k", ""); err != nil {
		t.Fatalf("UnsetFlag() error = %v", err)
	}
	if h.query != "" {
		t.Errorf("expected no query for universal unset, got %q", h.query)
	}
}

func TestHTTPClient_ListAndGet(t *testing.T) {
	h := &testHandler{responseBody: `{"flags":[{"key":"a","consumer":"*","value":"1"},{"key":"a","consumer":"svc","value":"2"}]}`}
	c := newTestClient(t, h)

	flags, err := c.ListByConsumer(context.Background(), "svc")
	if err != nil {
		t.Fatalf("ListByConsumer() error = %v", err)
	}
	if h.query != "consumer=svc" || len(flags) != 2 || flags[1].Value != "2" {
		t.Fatalf("query=%q flags=%+v", h.query, flags)
	}

	h.responseBody = `{"populated":false}`
	_, found, err := c.GetFlag(context.Background(), "a", "")
	if err != nil {
		t.Fatalf("GetFlag() error = %v", err)
	}
	if found {
		t.Fatal("expected not found")
	}
	if h.path != "/v1/flags/a/consumers/*" {
		t.Errorf("path = %q", h.path)
	}
}

func TestHTTPClient_Resolve(t *testing.T) {
	h := &testHandler{responseBody: `{"key":"b","type":"boolean","value":true}
{"key":"i","type":"integer","value":7}
{"key":"d","type":"double","value":"-Infinity"}
{"key":"s","type":"string","value":"x"}
{"key":"j","type":"structured","value":"[1]"}
`}
	c := newTestClient(t, h)

	got, err := c.Resolve(context.Background(), "svc")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 flags, got %+v", got)
	}
	if got[0].Value != true || got[1].Value != int32(7) || !math.IsInf(got[2].Value.(float64), -1) ||
		got[3].Value != "x" || got[4].Text() != "[1]" {
		t.Fatalf("unexpected values %+v", got)
	}
}

func TestHTTPClient_ResolveErrorLine(t *testing.T) {
	h := &testHandler{responseBody: `{"key":"b","type":"boolean","value":true}
{"error":"unsupported value type"}
`}
	c := newTestClient(t, h)

	if _, err := c.Resolve(context.Background(), "svc"); err == nil {
		t.Fatal("expected error from error line")
	}
}

func TestHTTPClient_APIError(t *testing.T) {
	h := &testHandler{statusCode: http.StatusBadRequest, responseBody: `{"error":"key: is required"}`}
	c := newTestClient(t, h)

	_, err := c.SetFlag(context.Background(), "", "1", "")
	if !IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
	if err.Error() != "HTTP 400: key: is required" {
		t.Errorf("Error() = %q", err.Error())
	}

	h.statusCode, h.responseBody = http.StatusBadGateway, "upstream down"
	_, err = c.Health(context.Background())
	if !IsStatus(err, http.StatusBadGateway) {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
}

func TestTypedFlag_Text(t *testing.T) {
	for _, tc := range []struct {
		flag TypedFlag
		want string
	}{
		{TypedFlag{Value: false}, "false"},
		{TypedFlag{Value: int32(-3)}, "-3"},
		{TypedFlag{Value: 2.5}, "2.5"},
		{TypedFlag{Value: "hi"}, "hi"},
	} {
		if got := tc.flag.Text(); got != tc.want {
			t.Errorf("Text() = %q, want %q", got, tc.want)
		}
	}
}

func TestHTTPClient_Consumers(t *testing.T) {
	h := &testHandler{responseBody: `[{"consumer":"billing","last_transport":"grpc","last_flag_count":3,"fetch_count":7,"idle_secs":1.5}]`}
	c := newTestClient(t, h)

	roster, err := c.Consumers(context.Background(), 5*time.Minute)
	if err != nil {
		t.Fatalf("Consumers() error = %v", err)
	}
	if h.path != "/v1/consumers" || h.query != "stale=5m0s" {
		t.Errorf("request = %s?%s, want /v1/consumers?stale=5m0s", h.path, h.query)
	}
	if len(roster) != 1 || roster[0].Consumer != "billing" || roster[0].FetchCount != 7 {
		t.Errorf("roster = %+v", roster)
	}
}
