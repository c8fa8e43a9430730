package events

import "context"

// Discard drops flag events. It stands in for a broker when GRAPIO_NATS_URL
// is unset, so writers always have a Publisher to call.
type Discard struct{}

func (Discard) Publish(context.Context, string, any) error { return nil }

func (Discard) Close() error { return nil }
