// Package flags implements the administrative and consumer-facing flag
// services on top of a store.Store.
package flags

import (
	"log/slog"
	"time"

	"github.com/alfredjeanlab/grapio/internal/events"
	"github.com/alfredjeanlab/grapio/internal/metrics"
)

type options struct {
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Admin or Provider.
type Option func(*options)

// WithPublisher sets the publisher for change events. Defaults to a no-op.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		publisher: events.Discard{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
