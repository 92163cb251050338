package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"admin-payments/internal/service"
)

const defaultRunTimeout = 2 * time.Minute

// Syncer runs one status-sync pass.
type Syncer interface {
	SyncPending(ctx context.Context) (service.SyncReport, error)
}

// Scheduler drives periodic status-sync passes. A pass that is still running
// when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron       *cron.Cron
	syncer     Syncer
	logger     *logrus.Logger
	runTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func New(syncer Syncer, schedule string, logger *logrus.Logger) (*Scheduler, error) {
	cronLogger := cron.PrintfLogger(logger.WithField("component", "scheduler"))
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		syncer:     syncer,
		logger:     logger,
		runTimeout: defaultRunTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Status sync scheduler started")
}

// Stop prevents new passes, aborts the running one and waits for it up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("Status sync scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs a pass immediately, outside the schedule.
func (s *Scheduler) RunOnce(ctx context.Context) (service.SyncReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()
	return s.syncer.SyncPending(ctx)
}

func (s *Scheduler) run() {
	s.logger.Debug("Running scheduled status sync")
	if _, err := s.RunOnce(s.ctx); err != nil {
		s.logger.WithError(err).Error("Scheduled status sync failed")
	}
}
