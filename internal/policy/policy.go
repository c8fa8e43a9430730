// Package policy enforces that a flag key is scoped either to the universal
// consumer or to specific consumers, never both.
package policy

import (
	"errors"
	"fmt"

	"github.com/alfredjeanlab/grapio/internal/model"
)

// ErrConflict is matched by every *ConflictError.
var ErrConflict = errors.New("scoping conflict")

// ConflictError reports a write that would mix universal and specific
// consumers for the same key.
type ConflictError struct {
	Key string
	// Universal is true when the rejected write targeted the universal consumer.
	Universal bool
}

func (e *ConflictError) Error() string {
	if e.Universal {
		return fmt.Sprintf("A specific consumer exists for %s. A universal consumer cannot be added for the same key.", e.Key)
	}
	return fmt.Sprintf("A universal consumer exists for %s. A specific consumer cannot be added for the same key.", e.Key)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Check decides whether a flag for (key, consumer) may be written given the
// records that already exist for key. Writing to an identity of the same
// scoping, including the identity itself, never conflicts.
func Check(key, consumer string, existing []*model.FeatureFlag) error {
	universal := consumer == model.UniversalConsumer
	for _, f := range existing {
		if f.IsUniversal() != universal {
			return &ConflictError{Key: key, Universal: universal}
		}
	}
	return nil
}
