// Package client provides a transport-agnostic interface for the grapio
// service with gRPC and HTTP/JSON implementations.
package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alfredjeanlab/grapio/internal/model"
)

// FlagsClient is the interface that grapio CLI commands use to communicate
// with the server. It is implemented by GRPCClient and HTTPClient.
type FlagsClient interface {
	// Administration
	SetFlag(ctx context.Context, key, value, consumer string) (*Result, error)
	UnsetFlag(ctx context.Context, key, consumer string) (*Result, error)
	ListIdentities(ctx context.Context) ([]model.FlagIdentity, error)
	ListByKey(ctx context.Context, key string) ([]*model.FeatureFlag, error)
	ListByConsumer(ctx context.Context, consumer string) ([]*model.FeatureFlag, error)
	// GetFlag returns found=false when no record has exactly (key, consumer).
	GetFlag(ctx context.Context, key, consumer string) (flag *model.FeatureFlag, found bool, err error)

	// Consumption
	Resolve(ctx context.Context, requester string) ([]TypedFlag, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// Result is the outcome of a write. Success is false on a scoping conflict.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TypedFlag is a resolved flag value. Value holds a bool, int32, float64 or
// string according to Type; structured values are their text.
type TypedFlag struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Text renders the value the way it would be written back with SetFlag.
func (f TypedFlag) Text() string {
	switch v := f.Value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ExportAll collects every stored flag by listing identities and then each
// distinct key.
func ExportAll(ctx context.Context, c FlagsClient) ([]*model.FeatureFlag, error) {
	ids, err := c.ListIdentities(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.FeatureFlag
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id.Key] {
			continue
		}
		seen[id.Key] = true
		list, err := c.ListByKey(ctx, id.Key)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", id.Key, err)
		}
		out = append(out, list...)
	}
	return out, nil
}
