// Package events publishes and subscribes to flag change notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/grapio/internal/model"
)

// Event topic constants
const (
	TopicFlagSet   = "grapio.flag.set"
	TopicFlagUnset = "grapio.flag.unset"

	// TopicAllFlags matches every flag event.
	TopicAllFlags = "grapio.flag.>"
)

// FlagSet is published after a flag has been created or updated.
type FlagSet struct {
	Flag *model.FeatureFlag `json:"flag"`
	At   time.Time          `json:"at"`
}

// FlagUnset is published after an unset request, whether or not a record
// was removed.
type FlagUnset struct {
	Key      string    `json:"key"`
	Consumer string    `json:"consumer"`
	Removed  bool      `json:"removed"`
	At       time.Time `json:"at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Message is a raw event received from a subscription.
type Message struct {
	Topic string
	Data  []byte
}

// Decode unmarshals the message payload into the event type for its topic.
func (m Message) Decode() (any, error) {
	var ev any
	switch m.Topic {
	case TopicFlagSet:
		ev = &FlagSet{}
	case TopicFlagUnset:
		ev = &FlagUnset{}
	default:
		return nil, fmt.Errorf("unknown event topic %q", m.Topic)
	}
	if err := json.Unmarshal(m.Data, ev); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", m.Topic, err)
	}
	return ev, nil
}
