// Package presence tracks which consumers resolve flags and how recently.
//
// The server records every completed resolve. A background reaper marks
// consumers idle once they stop fetching and later evicts them, so the
// roster stays bounded when consumers come and go.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Entry is one consumer's activity as of the roster snapshot.
type Entry struct {
	Consumer      string    `json:"consumer"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	LastTransport string    `json:"last_transport"` // "grpc" or "http"
	LastFlagCount int       `json:"last_flag_count"`
	FetchCount    int64     `json:"fetch_count"`
	IdleSecs      float64   `json:"idle_secs"`
	Idle          bool      `json:"idle,omitempty"` // marked by the reaper
	IdleSince     time.Time `json:"idle_since,omitzero"`
}

// Fetch describes one completed resolve.
type Fetch struct {
	Consumer  string
	Transport string
	Flags     int
}

// ReaperConfig configures the background idle sweep.
type ReaperConfig struct {
	// IdleThreshold is how long a consumer may go without fetching before it
	// is marked idle. Default: 15 minutes.
	IdleThreshold time.Duration

	// EvictAfter is how long an idle consumer stays in the roster.
	// Default: 1 hour.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper runs. Default: 1 minute.
	SweepInterval time.Duration

	// OnIdle is called outside the lock for each consumer newly marked idle.
	OnIdle func(consumer string)
}

func (c *ReaperConfig) withDefaults() ReaperConfig {
	out := ReaperConfig{}
	if c != nil {
		out = *c
	}
	if out.IdleThreshold == 0 {
		out.IdleThreshold = 15 * time.Minute
	}
	if out.EvictAfter == 0 {
		out.EvictAfter = time.Hour
	}
	if out.SweepInterval == 0 {
		out.SweepInterval = time.Minute
	}
	return out
}

// Tracker is an in-memory roster of consumers. Its methods are safe for
// concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	consumers map[string]*consumerState
	now       func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type consumerState struct {
	firstSeen     time.Time
	lastSeen      time.Time
	lastTransport string
	lastFlagCount int
	fetchCount    int64
	idle          bool
	idleSince     time.Time
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{
		consumers: make(map[string]*consumerState),
		now:       time.Now,
	}
}

// Record notes a completed resolve. A nil tracker ignores it.
func (t *Tracker) Record(f Fetch) {
	if t == nil || f.Consumer == "" {
		return
	}
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.consumers[f.Consumer]
	if !ok {
		st = &consumerState{firstSeen: now}
		t.consumers[f.Consumer] = st
	}
	if st.idle {
		slog.Debug("presence: consumer active again", "consumer", f.Consumer)
		st.idle = false
		st.idleSince = time.Time{}
	}
	st.lastSeen = now
	st.lastTransport = f.Transport
	st.lastFlagCount = f.Flags
	st.fetchCount++
}

// Roster returns every tracked consumer, most recently active first.
// Consumers idle for longer than stale are left out; 0 includes everyone.
func (t *Tracker) Roster(stale time.Duration) []Entry {
	if t == nil {
		return []Entry{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.consumers))
	for name, st := range t.consumers {
		idle := now.Sub(st.lastSeen)
		if stale > 0 && idle > stale {
			continue
		}
		entries = append(entries, Entry{
			Consumer:      name,
			FirstSeen:     st.firstSeen,
			LastSeen:      st.lastSeen,
			LastTransport: st.lastTransport,
			LastFlagCount: st.lastFlagCount,
			FetchCount:    st.fetchCount,
			IdleSecs:      idle.Seconds(),
			Idle:          st.idle,
			IdleSince:     st.idleSince,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].Consumer < entries[j].Consumer
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// StartReaper launches the idle sweep. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	c := cfg.withDefaults()
	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})
	go t.reapLoop(c)
	slog.Info("presence: reaper started",
		"idle_threshold", c.IdleThreshold,
		"sweep_interval", c.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg ReaperConfig) {
	now := t.now()
	var newlyIdle []string

	t.mu.Lock()
	for name, st := range t.consumers {
		if st.idle {
			if now.Sub(st.idleSince) > cfg.EvictAfter {
				delete(t.consumers, name)
			}
			continue
		}
		if now.Sub(st.lastSeen) > cfg.IdleThreshold {
			st.idle = true
			st.idleSince = now
			newlyIdle = append(newlyIdle, name)
		}
	}
	t.mu.Unlock()

	for _, name := range newlyIdle {
		slog.Info("presence: consumer idle", "consumer", name, "threshold", cfg.IdleThreshold)
		if cfg.OnIdle != nil {
			cfg.OnIdle(name)
		}
	}
}
