package server

import (
	"context"
	"iter"
	"sort"
	"sync"

	"github.com/alfredjeanlab/grapio/internal/model"
	"github.com/alfredjeanlab/grapio/internal/store"
)

// mockStore is an in-memory store.Store. When err is set every operation
// fails with it.
type mockStore struct {
	mu    sync.Mutex
	flags map[model.FlagIdentity]*model.FeatureFlag
	err   error
}

var _ store.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{flags: make(map[model.FlagIdentity]*model.FeatureFlag)}
}

func (m *mockStore) UpsertFlag(_ context.Context, f *model.FeatureFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cp := *f
	m.flags[f.Identity()] = &cp
	return nil
}

func (m *mockStore) DeleteFlag(_ context.Context, key, consumer string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	id := model.FlagIdentity{Key: key, Consumer: consumer}
	_, ok := m.flags[id]
	delete(m.flags, id)
	return ok, nil
}

func (m *mockStore) GetFlag(_ context.Context, key, consumer string) (*model.FeatureFlag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	f, ok := m.flags[model.FlagIdentity{Key: key, Consumer: consumer}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *mockStore) filter(keep func(*model.FeatureFlag) bool) ([]*model.FeatureFlag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.FeatureFlag
	for _, f := range m.flags {
		if keep(f) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Consumer < out[j].Consumer
	})
	return out, nil
}

func (m *mockStore) ListFlagsByKey(_ context.Context, key string) ([]*model.FeatureFlag, error) {
	return m.filter(func(f *model.FeatureFlag) bool { return f.Key == key })
}

func (m *mockStore) ListFlagsByConsumer(_ context.Context, consumer string) ([]*model.FeatureFlag, error) {
	return m.filter(func(f *model.FeatureFlag) bool {
		return f.Consumer == consumer || f.Consumer == model.UniversalConsumer
	})
}

func (m *mockStore) ListFlags(_ context.Context) ([]*model.FeatureFlag, error) {
	return m.filter(func(*model.FeatureFlag) bool { return true })
}

func (m *mockStore) FlagIdentities(ctx context.Context) iter.Seq2[model.FlagIdentity, error] {
	return func(yield func(model.FlagIdentity, error) bool) {
		list, err := m.ListFlags(ctx)
		if err != nil {
			yield(model.FlagIdentity{}, err)
			return
		}
		for _, f := range list {
			if !yield(f.Identity(), nil) {
				return
			}
		}
	}
}

func (m *mockStore) LockKey(context.Context, string) error { return nil }

func (m *mockStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *mockStore) Ping(context.Context) error { return m.err }

func (m *mockStore) Close() error { return nil }
