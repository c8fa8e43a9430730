package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	grapiov1 "github.com/alfredjeanlab/grapio/gen/grapio/v1"
	"github.com/alfredjeanlab/grapio/internal/model"
	"github.com/alfredjeanlab/grapio/internal/presence"
)

// HTTPClient implements FlagsClient using the grapio HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Administration ---

func (c *HTTPClient) SetFlag(ctx context.Context, key, value, consumer string) (*Result, error) {
	body := map[string]string{"value": value, "consumer": consumer}
	var res Result
	if err := c.doJSON(ctx, http.MethodPut, "/v1/flags/"+url.PathEscape(key), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) UnsetFlag(ctx context.Context, key, consumer string) (*Result, error) {
	path := "/v1/flags/" + url.PathEscape(key)
	if consumer != "" {
		path += "?" + url.Values{"consumer": {consumer}}.Encode()
	}
	var res Result
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) ListIdentities(ctx context.Context) ([]model.FlagIdentity, error) {
	var resp struct {
		Flags []model.FlagIdentity `json:"flags"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/flags", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Flags, nil
}

func (c *HTTPClient) ListByKey(ctx context.Context, key string) ([]*model.FeatureFlag, error) {
	return c.listFlags(ctx, url.Values{"key": {key}})
}

func (c *HTTPClient) ListByConsumer(ctx context.Context, consumer string) ([]*model.FeatureFlag, error) {
	return c.listFlags(ctx, url.Values{"consumer": {consumer}})
}

func (c *HTTPClient) listFlags(ctx context.Context, q url.Values) ([]*model.FeatureFlag, error) {
	var resp struct {
		Flags []*model.FeatureFlag `json:"flags"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/flags?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Flags, nil
}

func (c *HTTPClient) GetFlag(ctx context.Context, key, consumer string) (*model.FeatureFlag, bool, error) {
	if consumer == "" {
		consumer = model.UniversalConsumer
	}
	var resp struct {
		Key       string `json:"key"`
		Consumer  string `json:"consumer"`
		Value     string `json:"value"`
		Populated bool   `json:"populated"`
	}
	path := "/v1/flags/" + url.PathEscape(key) + "/consumers/" + url.PathEscape(consumer)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, false, err
	}
	if !resp.Populated {
		return nil, false, nil
	}
	return &model.FeatureFlag{Key: resp.Key, Consumer: resp.Consumer, Value: resp.Value}, true, nil
}

// --- Consumption ---

// resolvedLine mirrors one line of the /v1/resolve NDJSON stream.
type resolvedLine struct {
	Key   string          `json:"key"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
	Error string          `json:"error"`
}

func (c *HTTPClient) Resolve(ctx context.Context, requester string) ([]TypedFlag, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/resolve/"+url.PathEscape(requester), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out []TypedFlag
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var line resolvedLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		if line.Error != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: line.Error}
		}
		t, err := lineToTyped(line)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return out, nil
}

func lineToTyped(line resolvedLine) (TypedFlag, error) {
	t := TypedFlag{Key: line.Key, Type: line.Type}
	var err error
	switch line.Type {
	case "boolean":
		var b bool
		err = json.Unmarshal(line.Value, &b)
		t.Value = b
	case "integer":
		var n int32
		err = json.Unmarshal(line.Value, &n)
		t.Value = n
	case "double":
		var d grapiov1.Double
		err = json.Unmarshal(line.Value, &d)
		t.Value = float64(d)
	case "string", "structured":
		var s string
		err = json.Unmarshal(line.Value, &s)
		t.Value = s
	default:
		return t, fmt.Errorf("unknown value type %q for %s", line.Type, line.Key)
	}
	if err != nil {
		return t, fmt.Errorf("decoding %s value of %s: %w", line.Type, line.Key, err)
	}
	return t, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Consumers returns the server's roster of consumers that have resolved
// flags. stale > 0 hides consumers idle for longer.
func (c *HTTPClient) Consumers(ctx context.Context, stale time.Duration) ([]presence.Entry, error) {
	path := "/v1/consumers"
	if stale > 0 {
		path += "?" + url.Values{"stale": {stale.String()}}.Encode()
	}
	var out []presence.Entry
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// do performs an HTTP request with an optional JSON body. Non-2xx responses
// are returned as *APIError; on success the caller owns the response body.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}
	return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
}

// doJSON performs a request and decodes the JSON response into result.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
