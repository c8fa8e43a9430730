// Package idgen generates short, URL-safe correlation IDs backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// CorrelationPrefix is prepended to every generated correlation ID.
const CorrelationPrefix = "req-"

// Alphabet defines the character set used for the random portion of the ID.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 12

// Correlation returns a new correlation ID.
func Correlation() (string, error) {
	return WithPrefix(CorrelationPrefix)
}

// MustCorrelation is Correlation for call sites that cannot report an error.
// It falls back to the bare prefix when the random source fails.
func MustCorrelation() string {
	id, err := Correlation()
	if err != nil {
		return CorrelationPrefix + "unknown"
	}
	return id
}

// WithPrefix returns a new ID with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
