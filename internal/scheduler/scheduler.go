package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/i474232898/weather-oracle/internal/logging"
	"github.com/i474232898/weather-oracle/internal/oracle"
)

var ErrInvalidInterval = errors.New("poll interval must be positive")

// Ticker runs one settlement pass over all tracked oracles.
type Ticker interface {
	Tick(ctx context.Context) (oracle.TickStats, error)
}

// Scheduler periodically settles tracked oracles. At most one pass runs at a
// time; a firing that would overlap a running pass is rescheduled.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Ticker
	interval  time.Duration
	logger    zerolog.Logger

	running atomic.Bool
	passes  atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler.
func New(interval time.Duration, service Ticker) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SetMaxConcurrentJobs(1, gocron.RescheduleMode)
	return &Scheduler{
		scheduler: s,
		service:   service,
		interval:  interval,
		logger:    logging.WithComponent("scheduler"),
	}
}

// Start schedules the poll job. The first pass runs one interval after Start.
// Cancelling ctx aborts the pass in flight.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return ErrInvalidInterval
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(func() {
		s.RunOnce(s.ctx)
	})
	if err != nil {
		s.cancel()
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", s.interval).Msg("oracle poller started")
	return nil
}

// RunOnce runs a single pass unless one is already running. It reports
// whether a pass was started.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if !s.running.CAS(false, true) {
		s.logger.Warn().Msg("previous pass still running; skipping")
		return false
	}
	defer s.running.Store(false)

	n := s.passes.Inc()
	ctx = s.logger.With().Uint64("pass", n).Logger().WithContext(ctx)

	stats, err := s.service.Tick(ctx)
	if err != nil {
		s.logger.Error().Err(err).
			Uint64("pass", n).
			Int("failed", stats.Failed).
			Msg("pass finished with errors")
	}
	return true
}

// Passes returns the number of passes started so far.
func (s *Scheduler) Passes() uint64 {
	return s.passes.Load()
}

// Stop cancels the pass in flight, if any, and stops future passes.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.logger.Info().Msg("oracle poller stopped")
}
