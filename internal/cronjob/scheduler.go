package cronjob

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Retrier re-drives sync-pending entities and reports how many it queued.
type Retrier interface {
	RetryPending(ctx context.Context) int
}

type Scheduler struct {
	cron     *cron.Cron
	target   Retrier
	schedule string
	timeout  time.Duration
	log      *zap.Logger
}

// NewScheduler builds a scheduler for a six-field (with seconds) cron
// expression. Overlapping runs are skipped.
func NewScheduler(target Retrier, schedule string, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("RetryScheduler")
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		target:   target,
		schedule: schedule,
		timeout:  time.Minute,
		log:      log,
	}
}

// Start registers the retry job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return fmt.Errorf("invalid retry schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.log.Info("Retry scheduler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the schedule and waits for a running job, or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("Retry job still running at shutdown")
	}
}

// RunOnce re-drives pending entities immediately.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	n := s.target.RetryPending(ctx)
	if n > 0 {
		s.log.Info("Re-queued pending entities", zap.Int("count", n))
	} else {
		s.log.Debug("Nothing pending")
	}
	return n
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.RunOnce(ctx)
}
