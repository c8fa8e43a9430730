package flags

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/grapio/internal/detect"
	"github.com/alfredjeanlab/grapio/internal/model"
	"github.com/alfredjeanlab/grapio/internal/store"
)

// ResolvedFlag is a flag value converted to its detected type.
type ResolvedFlag struct {
	Key      string
	Consumer string
	Value    detect.Value
}

// Resolver converts an untyped value into a typed one. *detect.Detector
// implements it.
type Resolver interface {
	Resolve(value string) (detect.Value, error)
}

// Provider serves typed flag values to consuming services.
type Provider struct {
	store    store.Store
	resolver Resolver
	options
}

// NewProvider returns a Provider reading from s and classifying with r.
func NewProvider(s store.Store, r Resolver, opts ...Option) *Provider {
	return &Provider{store: s, resolver: r, options: buildOptions(opts)}
}

// Resolve emits one typed value for every flag visible to requester: its own
// flags and universal ones. A value that cannot be classified aborts the
// stream. Cancellation is checked before each emission.
func (p *Provider) Resolve(ctx context.Context, requester string, emit func(ResolvedFlag) error) error {
	flags, err := p.store.ListFlagsByConsumer(ctx, model.NormalizeConsumer(requester))
	if err != nil {
		return err
	}

	for _, f := range flags {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := p.resolver.Resolve(f.Value)
		if err != nil {
			p.logger.Error("flag value cannot be served", "flag", f.String(), "err", err)
			return fmt.Errorf("resolve %s: %w", f.Identity(), err)
		}
		p.metrics.ObserveDetection(v.Type.String())
		if err := emit(ResolvedFlag{Key: f.Key, Consumer: f.Consumer, Value: v}); err != nil {
			return err
		}
	}
	return nil
}
