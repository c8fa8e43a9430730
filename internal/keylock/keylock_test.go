package keylock

import (
	"sync"
	"testing"
)

func TestStriped_SerializesSameKey(t *testing.T) {
	locks := New(8)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("dark-mode")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most 1 concurrent holder, saw %d", maxSeen)
	}
}

func TestStriped_DefaultStripes(t *testing.T) {
	if got := len(New(0).stripes); got != DefaultStripes {
		t.Fatalf("expected %d stripes, got %d", DefaultStripes, got)
	}
}

func TestStriped_StableStripe(t *testing.T) {
	locks := New(16)
	if locks.stripe("a") != locks.stripe("a") {
		t.Fatal("expected the same key to map to the same stripe")
	}
}

func TestHash_Stable(t *testing.T) {
	if Hash("dark-mode") != Hash("dark-mode") {
		t.Fatal("expected Hash to be deterministic")
	}
	if Hash("dark-mode") == Hash("light-mode") {
		t.Fatal("expected distinct keys to hash differently")
	}
}
