// Package scheduler triggers announcer runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/loc-announcer/internal/runner"
)

// Scheduler owns a cron instance with a single announcer job.
type Scheduler struct {
	cron     *cron.Cron
	job      runner.Invoker
	schedule string
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// New validates schedule and returns an unstarted Scheduler.
func New(schedule string, job runner.Invoker, logger *zap.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("job is required")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(),
		job:      job,
		schedule: schedule,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.Trigger)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.String("cron", s.schedule))
	return nil
}

// Trigger runs the job once, logging the outcome.
func (s *Scheduler) Trigger() {
	s.logger.Info("Scheduled run triggered")
	res, err := s.job.Run(s.ctx)
	switch {
	case errors.Is(err, runner.ErrAlreadyRunning):
		s.logger.Warn("Skipping scheduled run, previous run still active")
	case err != nil:
		s.logger.Error("Scheduled run failed", zap.Error(err))
	default:
		s.logger.Info("Scheduled run finished", zap.Int("status", res.StatusCode))
	}
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
}
