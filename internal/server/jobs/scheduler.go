// Package jobs runs the periodic background work of the server: the
// financial aggregate refresh, reconciliation of pending charges and
// refresh-token cleanup.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/logging"
	"github.com/robfig/cron/v3"
)

// Job is a named unit of periodic work on a cron schedule.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
	// Timeout bounds one run; zero means no bound.
	Timeout time.Duration
}

type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(l logging.Logger) *Scheduler {
	l = l.With("module", "jobs")
	cl := cronLogger{l: l}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cron: c, logger: l, ctx: ctx, cancel: cancel}
}

// Add schedules j. An empty spec disables the job.
func (s *Scheduler) Add(j Job) error {
	if j.Spec == "" {
		s.logger.Info(s.ctx, "job disabled", "job", j.Name)
		return nil
	}
	if _, err := s.cron.AddFunc(j.Spec, func() { s.run(s.ctx, j) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", j.Name, j.Spec, err)
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, j Job) {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	start := time.Now()
	if err := j.Run(ctx); err != nil {
		s.logger.Error(ctx, "job failed", "job", j.Name, "error", err, "latency", time.Since(start))
		return
	}
	s.logger.Debug(ctx, "job done", "job", j.Name, "latency", time.Since(start))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(s.ctx, "scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs and waits for them to return or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info(ctx, "scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn(ctx, "scheduler stop timed out")
	}
}

// cronLogger routes cron's own messages through Logger.
type cronLogger struct {
	l logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(context.Background(), "cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(context.Background(), "cron: "+msg, append(keysAndValues, "error", err)...)
}
