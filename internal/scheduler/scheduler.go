// Package scheduler runs the periodic lens synthesis sweep.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Scheduler owns a cron instance with the sweep job registered.
type Scheduler struct {
	cron *cron.Cron
	job  *SweepJob
}

// New registers job on spec. The spec carries a leading seconds field
// ("0 */15 * * * *"). An empty spec is an error.
func New(spec string, job *SweepJob) (*Scheduler, error) {
	if spec == "" {
		return nil, eris.New("scheduler: empty cron spec")
	}
	logger := cronLogger{log: zap.L().Named("cron")}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddJob(spec, job); err != nil {
		return nil, eris.Wrapf(err, "scheduler: add sweep job (spec: %s)", spec)
	}
	zap.L().Info("scheduler: synthesis sweep registered", zap.String("spec", spec))
	return &Scheduler{cron: c, job: job}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running sweep until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "scheduler: stop")
	}
}

// Next returns the next activation time, or the zero time when no entry is
// scheduled or the scheduler has not started.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
