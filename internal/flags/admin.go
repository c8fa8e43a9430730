package flags

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/alfredjeanlab/grapio/internal/events"
	"github.com/alfredjeanlab/grapio/internal/keylock"
	"github.com/alfredjeanlab/grapio/internal/model"
	"github.com/alfredjeanlab/grapio/internal/policy"
	"github.com/alfredjeanlab/grapio/internal/store"
)

// SetRequest asks for a flag to be created or updated. A nil Value is
// rejected; an empty Consumer means the universal consumer.
type SetRequest struct {
	Key      string
	Value    *string
	Consumer string
}

// Result is the outcome of a write. A scoping conflict is reported as an
// unsuccessful Result rather than an error.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Admin is the administrative service: it writes flags under the scoping
// policy and reads them back.
type Admin struct {
	store store.Store
	locks *keylock.Striped
	options
}

// NewAdmin returns an Admin backed by s.
func NewAdmin(s store.Store, opts ...Option) *Admin {
	return &Admin{
		store:   s,
		locks:   keylock.New(keylock.DefaultStripes),
		options: buildOptions(opts),
	}
}

// Set validates req and upserts the flag unless it would mix universal and
// specific consumers for the key. Writers of the same key are serialized,
// both in-process and through the store's key lock, so the policy check and
// the upsert observe the same state.
func (a *Admin) Set(ctx context.Context, req SetRequest) (Result, error) {
	flag := model.NewFeatureFlag(req.Key, "", req.Consumer)
	if err := validateSet(flag, req.Value); err != nil {
		return Result{}, err
	}
	flag.Value = *req.Value

	unlock := a.locks.Lock(flag.Key)
	defer unlock()

	var updated bool
	err := a.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.LockKey(ctx, flag.Key); err != nil {
			return err
		}
		existing, err := tx.ListFlagsByKey(ctx, flag.Key)
		if err != nil {
			return err
		}
		if err := policy.Check(flag.Key, flag.Consumer, existing); err != nil {
			return err
		}
		for _, f := range existing {
			if f.Consumer == flag.Consumer {
				updated = true
			}
		}
		return tx.UpsertFlag(ctx, flag)
	})

	var conflict *policy.ConflictError
	if errors.As(err, &conflict) {
		a.logger.Warn("flag set rejected", "key", flag.Key, "consumer", flag.Consumer, "reason", conflict.Error())
		a.metrics.ObserveConflict()
		return Result{Success: false, Message: conflict.Error()}, nil
	}
	if err != nil {
		a.logger.Error("flag set failed", "key", flag.Key, "consumer", flag.Consumer, "err", err)
		return Result{}, err
	}

	if updated {
		a.logger.Debug("updated flag", "flag", flag.String())
	} else {
		a.logger.Debug("inserted flag", "flag", flag.String())
	}
	a.logger.Info("flag set", "key", flag.Key, "consumer", flag.Consumer)
	a.metrics.ObserveWrite("set")
	a.publish(ctx, events.TopicFlagSet, events.FlagSet{Flag: flag, At: a.now().UTC()})

	return Result{
		Success: true,
		Message: fmt.Sprintf("Successfully set %s.", flag.Identity()),
	}, nil
}

func validateSet(flag *model.FeatureFlag, value *string) error {
	var ve model.ValidationError
	if err := model.ValidateFlag(flag); err != nil {
		ve.Errors = append(ve.Errors, err.(*model.ValidationError).Errors...)
	}
	if value == nil {
		ve.Add("value", "is required")
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// Unset removes the (key, consumer) record. Removing a record that does not
// exist succeeds.
func (a *Admin) Unset(ctx context.Context, key, consumer string) (Result, error) {
	id := model.FlagIdentity{Key: key, Consumer: model.NormalizeConsumer(consumer)}
	if err := model.ValidateIdentity(id.Key, id.Consumer); err != nil {
		return Result{}, err
	}

	removed, err := a.store.DeleteFlag(ctx, id.Key, id.Consumer)
	if err != nil {
		a.logger.Error("flag unset failed", "key", id.Key, "consumer", id.Consumer, "err", err)
		return Result{}, err
	}
	if removed {
		a.logger.Info("flag unset", "key", id.Key, "consumer", id.Consumer)
	} else {
		a.logger.Warn(fmt.Sprintf("No match found for %s to delete", id))
	}

	a.metrics.ObserveWrite("unset")
	a.publish(ctx, events.TopicFlagUnset, events.FlagUnset{
		Key:      id.Key,
		Consumer: id.Consumer,
		Removed:  removed,
		At:       a.now().UTC(),
	})

	return Result{
		Success: true,
		Message: fmt.Sprintf("Successfully unset %s.", id),
	}, nil
}

// FetchAll lazily yields the identity of every stored flag.
func (a *Admin) FetchAll(ctx context.Context) iter.Seq2[model.FlagIdentity, error] {
	return a.store.FlagIdentities(ctx)
}

// FetchByKey returns every record stored for key.
func (a *Admin) FetchByKey(ctx context.Context, key string) ([]*model.FeatureFlag, error) {
	return a.store.ListFlagsByKey(ctx, key)
}

// FetchByConsumer returns the consumer's own records plus universal ones.
func (a *Admin) FetchByConsumer(ctx context.Context, consumer string) ([]*model.FeatureFlag, error) {
	return a.store.ListFlagsByConsumer(ctx, model.NormalizeConsumer(consumer))
}

// FetchByKeyAndConsumer looks up exactly (key, consumer). found is false when
// no such record exists; there is no fallback to the universal consumer.
func (a *Admin) FetchByKeyAndConsumer(ctx context.Context, key, consumer string) (flag *model.FeatureFlag, found bool, err error) {
	flag, err = a.store.GetFlag(ctx, key, model.NormalizeConsumer(consumer))
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return flag, true, nil
}

// Export returns every stored flag.
func (a *Admin) Export(ctx context.Context) ([]*model.FeatureFlag, error) {
	return a.store.ListFlags(ctx)
}

// publish emits an event; failures are logged and never fail the write.
func (a *Admin) publish(ctx context.Context, topic string, event any) {
	if err := a.publisher.Publish(ctx, topic, event); err != nil {
		a.logger.Warn("failed to publish event", slog.String("topic", topic), slog.Any("err", err))
	}
}
