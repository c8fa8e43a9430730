// Package model defines the feature flag records stored and served by grapio.
package model

import "strings"

// UniversalConsumer is the wildcard consumer. A flag stored under it applies
// to every requester.
const UniversalConsumer = "*"

const (
	// MaxKeyLength is the maximum number of characters in a flag key.
	MaxKeyLength = 50
	// MaxConsumerLength is the maximum number of characters in a consumer name.
	MaxConsumerLength = 150
)

// FeatureFlag is a single (key, consumer) -> value record. The value is kept
// untyped; its type is inferred when it is served.
type FeatureFlag struct {
	Key      string `json:"key"`
	Consumer string `json:"consumer"`
	Value    string `json:"value"`
}

// FlagIdentity is the primary key of a FeatureFlag without its value.
type FlagIdentity struct {
	Key      string `json:"key"`
	Consumer string `json:"consumer"`
}

// NewFeatureFlag builds a flag, defaulting an empty consumer to the universal
// consumer.
func NewFeatureFlag(key, value, consumer string) *FeatureFlag {
	return &FeatureFlag{Key: key, Consumer: NormalizeConsumer(consumer), Value: value}
}

// NormalizeConsumer maps the empty consumer to UniversalConsumer.
func NormalizeConsumer(consumer string) string {
	if consumer == "" {
		return UniversalConsumer
	}
	return consumer
}

// IsUniversal reports whether the flag applies to every consumer.
func (f *FeatureFlag) IsUniversal() bool {
	return f.Consumer == UniversalConsumer
}

// Identity returns the (key, consumer) pair of the flag.
func (f *FeatureFlag) Identity() FlagIdentity {
	return FlagIdentity{Key: f.Key, Consumer: f.Consumer}
}

// Equal compares two flags field by field, ignoring case.
func (f *FeatureFlag) Equal(other *FeatureFlag) bool {
	if f == nil || other == nil {
		return f == other
	}
	return strings.EqualFold(f.Key, other.Key) &&
		strings.EqualFold(f.Consumer, other.Consumer) &&
		strings.EqualFold(f.Value, other.Value)
}

// String renders the flag as consumer.key=>value.
func (f *FeatureFlag) String() string {
	return f.Consumer + "." + f.Key + "=>" + f.Value
}

// String renders the identity as (key,consumer).
func (id FlagIdentity) String() string {
	return "(" + id.Key + "," + id.Consumer + ")"
}
