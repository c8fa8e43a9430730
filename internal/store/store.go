package store

import (
	"context"
	"errors"
	"iter"

	"github.com/alfredjeanlab/grapio/internal/model"
)

// Store defines the persistence interface for feature flags.
type Store interface {
	// Flags
	UpsertFlag(ctx context.Context, flag *model.FeatureFlag) error
	DeleteFlag(ctx context.Context, key, consumer string) (removed bool, err error)
	GetFlag(ctx context.Context, key, consumer string) (*model.FeatureFlag, error)
	ListFlagsByKey(ctx context.Context, key string) ([]*model.FeatureFlag, error)
	ListFlagsByConsumer(ctx context.Context, consumer string) ([]*model.FeatureFlag, error) // consumer's own flags plus universal ones
	ListFlags(ctx context.Context) ([]*model.FeatureFlag, error)

	// FlagIdentities lazily yields every (key, consumer) pair. Each range over
	// the returned sequence runs a fresh query.
	FlagIdentities(ctx context.Context) iter.Seq2[model.FlagIdentity, error]

	// LockKey serializes writers of key until the current transaction ends.
	// Outside RunInTransaction it has no lasting effect.
	LockKey(ctx context.Context, key string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned by GetFlag when no record has the requested identity.
var ErrNotFound = errors.New("flag not found")

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a *StorageError for op. Nil, ErrNotFound, validation
// errors and errors that are already storage errors pass through unchanged.
func Wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
