// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/rain-gauge-etl/internal/pipeline"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

// Scheduler runs a Runner once at startup and then on a standard five-field
// cron expression. A tick that fires while the previous run is still active
// is skipped.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	runner Runner
	logger *slog.Logger
}

// New validates spec and prepares a scheduler. Nothing runs until Run.
func New(spec string, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	cl := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{cron: c, spec: spec, runner: runner, logger: logger}, nil
}

// Run starts the schedule, triggers an immediate first run so readiness does
// not wait for the first tick, and blocks until ctx is cancelled. It then
// waits for an in-flight run to return.
func (s *Scheduler) Run(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) })
	if err != nil {
		return fmt.Errorf("schedule pipeline: %w", err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec, "next", s.cron.Entry(id).Next)

	// The wrapped job shares the SkipIfStillRunning guard with scheduled ticks.
	var startup sync.WaitGroup
	startup.Add(1)
	go func() {
		defer startup.Done()
		s.cron.Entry(id).WrappedJob.Run()
	}()

	<-ctx.Done()
	s.logger.Info("scheduler stopping")
	<-s.cron.Stop().Done()
	startup.Wait()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.logger.Warn("scheduled run skipped", "reason", err)
	case err != nil:
		// The pipeline logs the failure with its run id; keep the schedule alive.
		s.logger.Debug("scheduled run failed", "error", err)
	}
}
