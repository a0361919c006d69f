package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/agent8/internal/logging"
	"github.com/rendis/agent8/internal/store"
	"github.com/rendis/agent8/pkg/schema"
)

// Defaults for the retention job.
const (
	DefaultSchedule      = "@hourly"
	DefaultRetention     = 7 * 24 * time.Hour
	DefaultCheckInterval = 60 * time.Second
)

// DefaultVacuumThreshold is the number of runs one prune must remove before
// the database is vacuumed.
const DefaultVacuumThreshold = 500

// Config configures the retention pruner.
type Config struct {
	Schedule        string        // cron expression or descriptor
	Retention       time.Duration // run records older than this are pruned
	CheckInterval   time.Duration // how often the loop checks whether a prune is due
	VacuumThreshold int64         // vacuum after a prune removes at least this many runs
	Now             func() time.Time
}

// Scheduler prunes finished run records on a cron schedule.
type Scheduler struct {
	store     store.Store
	schedule  cron.Schedule
	retention time.Duration
	interval  time.Duration
	vacuumAt  int64
	now       func() time.Time
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	stateMu  sync.Mutex
	nextRun  time.Time
	inflight bool
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewScheduler creates a Scheduler. An unparsable schedule is a VALIDATION_ERROR.
func NewScheduler(s store.Store, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.VacuumThreshold <= 0 {
		cfg.VacuumThreshold = DefaultVacuumThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	schedule, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse prune schedule %q: %s", cfg.Schedule, err.Error()).WithCause(err)
	}

	return &Scheduler{
		store:     s,
		schedule:  schedule,
		retention: cfg.Retention,
		interval:  cfg.CheckInterval,
		vacuumAt:  cfg.VacuumThreshold,
		now:       cfg.Now,
		logger:    logging.OrDefault(logger),
	}, nil
}

// Start prunes once immediately, then on every scheduled slot.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.setNextRun(s.schedule.Next(s.now()))
	go s.loop(schedCtx)
	s.logger.Info("scheduler: started", "next_run", s.NextRun(), "retention", s.retention)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runPrune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick prunes when the next scheduled slot has passed.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	if now.Before(s.NextRun()) {
		return
	}
	s.runPrune(ctx)
	s.setNextRun(s.schedule.Next(now))
}

func (s *Scheduler) runPrune(ctx context.Context) {
	if _, err := s.PruneOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduler: prune failed", "error", err)
	}
}

// PruneOnce deletes finished runs that started before now minus the retention
// window. Overlapping calls are skipped and report zero.
func (s *Scheduler) PruneOnce(ctx context.Context) (int64, error) {
	if !s.tryAcquire() {
		return 0, nil
	}
	defer s.release()

	cutoff := s.now().Add(-s.retention)
	n, err := s.store.PruneRuns(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		s.logger.Info("scheduler: pruned runs", "count", n, "before", cutoff)
	}
	if n >= s.vacuumAt {
		if err := s.store.Vacuum(ctx); err != nil {
			s.logger.Warn("scheduler: vacuum failed", "error", err)
		}
	}
	return n, nil
}

// NextRun returns the next scheduled prune time.
func (s *Scheduler) NextRun() time.Time {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.nextRun
}

func (s *Scheduler) setNextRun(t time.Time) {
	s.stateMu.Lock()
	s.nextRun = t
	s.stateMu.Unlock()
}

func (s *Scheduler) tryAcquire() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.inflight {
		return false
	}
	s.inflight = true
	return true
}

func (s *Scheduler) release() {
	s.stateMu.Lock()
	s.inflight = false
	s.stateMu.Unlock()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler: stopped")
	return nil
}
