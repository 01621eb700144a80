package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/gaf-clearance/internal/forecast"
)

// CycleRunner starts a refresh cycle without waiting for it.
type CycleRunner interface {
	RunCycle(ctx context.Context) *forecast.Cycle
}

// Scheduler periodically refreshes every forecast period and region.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    CycleRunner
	interval  time.Duration
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	latest *forecast.Cycle
	runs   int
}

// New creates a new Scheduler.
func New(runner CycleRunner, interval time.Duration, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the periodic cycle and starts the underlying scheduler.
// The first cycle runs immediately.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.tick)
	if err != nil {
		return err
	}

	s.logger.Info("scheduler started", "interval_minutes", minutes)
	s.scheduler.StartAsync()
	return nil
}

// tick launches a cycle and returns; the cycle's tasks finish on their own.
func (s *Scheduler) tick() {
	s.mu.Lock()
	s.runs++
	run := s.runs
	s.mu.Unlock()

	s.logger.Info("scheduler: starting refresh cycle", "run", run)
	cycle := s.runner.RunCycle(s.ctx)

	s.mu.Lock()
	s.latest = cycle
	s.mu.Unlock()
}

// Latest returns the most recently started cycle, or nil before the first run.
func (s *Scheduler) Latest() *forecast.Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Stop stops the scheduler and cancels in-flight fetches.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.cancel()
}
