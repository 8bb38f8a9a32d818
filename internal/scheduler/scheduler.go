package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs a job at a fixed interval until its context is cancelled.
type Scheduler struct {
	name       string
	interval   time.Duration
	job        Job
	runOnStart bool
	logger     *zap.Logger
}

func New(name string, interval time.Duration, job Job, runOnStart bool, logger *zap.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	if job == nil {
		return nil, errors.New("scheduler job is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		name:       name,
		interval:   interval,
		job:        job,
		runOnStart: runOnStart,
		logger:     logger.With(zap.String("job", name)),
	}, nil
}

// Start blocks until ctx is done. Job errors are logged and do not stop the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.runOnStart {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	if err := s.job(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled job failed", zap.Error(err))
	}
}
