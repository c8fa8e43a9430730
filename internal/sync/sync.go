// Package sync periodically exports flag snapshots to S3 and git.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Destination is the interface for a sync target (S3, git, etc.).
type Destination interface {
	// Write stores the snapshot at the destination.
	Write(ctx context.Context, snap Snapshot) error
}

// Scheduler runs periodic syncs to one or more destinations.
type Scheduler struct {
	source       Source
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from src to the given
// destinations at the specified interval.
func NewScheduler(src Source, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		source:       src,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.SyncOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}

// SyncOnce exports one snapshot and writes it to every destination. A failing
// destination does not stop the others. It returns the first error.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	var buf bytes.Buffer
	h, err := ExportJSONL(ctx, s.source, &buf)
	if err != nil {
		s.logger.Error("sync export failed", "err", err)
		return err
	}
	snap := Snapshot{ID: h.ID, Flags: h.FlagCount, Data: buf.Bytes()}

	var first error
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, snap); err != nil {
			s.logger.Error("sync destination write failed", "destination", fmt.Sprintf("%d", i), "snapshot", snap.ID, "err", err)
			if first == nil {
				first = err
			}
		}
	}

	s.logger.Info("sync completed", "snapshot", snap.ID, "flags", snap.Flags, "destinations", len(s.destinations), "bytes", len(snap.Data))
	return first
}
