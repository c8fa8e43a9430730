// Package keylock provides per-key mutual exclusion over a fixed set of
// mutex stripes selected by hashing the key.
package keylock

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultStripes is the stripe count used when New is given n <= 0.
const DefaultStripes = 64

// Striped maps keys onto a fixed pool of mutexes. Distinct keys may share a
// stripe; the same key always maps to the same stripe.
type Striped struct {
	stripes []sync.Mutex
}

// New returns a Striped lock with n stripes.
func New(n int) *Striped {
	if n <= 0 {
		n = DefaultStripes
	}
	return &Striped{stripes: make([]sync.Mutex, n)}
}

// Lock acquires the stripe for key and returns its release function.
func (s *Striped) Lock(key string) (unlock func()) {
	mu := &s.stripes[s.stripe(key)]
	mu.Lock()
	return mu.Unlock
}

func (s *Striped) stripe(key string) uint64 {
	return xxhash.Sum64String(key) % uint64(len(s.stripes))
}

// Hash returns a stable signed 64-bit identifier for key, suitable for
// database advisory locks.
func Hash(key string) int64 {
	return int64(xxhash.Sum64String(key))
}
