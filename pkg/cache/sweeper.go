package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper prunes expired entries on a cron schedule. An entry is removed
// once it has been expired for longer than the stale grace period, so it
// can still be served as stale data in between.
type Sweeper struct {
	store    Store
	name     string
	schedule string
	staleFor time.Duration
	recorder Recorder

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	stopped chan struct{}
	logger  *slog.Logger
	now     func() time.Time
}

// NewSweeper creates a sweeper for store. name labels its metrics.
func NewSweeper(store Store, name, schedule string, staleFor time.Duration, recorder Recorder) *Sweeper {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Sweeper{
		store:    store,
		name:     name,
		schedule: schedule,
		staleFor: staleFor,
		recorder: recorder,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "cache.sweeper", "cache", name),
		now:      time.Now,
	}
}

// Start schedules sweeps until ctx is canceled or Stop is called.
// An empty schedule disables the sweeper.
//
// Common cron expressions:
//   - "*/10 * * * *" - Every 10 minutes
//   - "0 * * * *"    - Hourly
//   - "0 3 * * *"    - Daily at 3 AM
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.schedule == "" {
		s.logger.Info("prune schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.run(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.stopped = make(chan struct{})

	s.logger.Info("cache sweeper started",
		"schedule", s.schedule,
		"stale_for", s.staleFor,
	)

	stopped := s.stopped
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopped:
		}
	}()

	return nil
}

// Sweep prunes once and returns the number of entries removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.staleFor)

	removed, err := s.store.PruneExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.recorder.RecordCacheEviction(s.name, removed)

	if n, err := s.store.Len(ctx); err == nil {
		s.recorder.UpdateCacheSize(s.name, n)
	}

	return removed, nil
}

func (s *Sweeper) run(ctx context.Context) {
	removed, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("scheduled sweep failed", "error", err)
		return
	}

	if removed > 0 {
		s.logger.Info("scheduled sweep completed", "deleted_count", removed)
	} else {
		s.logger.Debug("scheduled sweep completed, no entries deleted")
	}
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	close(s.stopped)
	s.running = false
	s.logger.Info("cache sweeper stopped")
}

// IsRunning reports whether the schedule is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep, or nil when not scheduled.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
