// Package scheduler runs the periodic sweep that resumes executions
// suspended on elapsed wait steps.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/dripflow/dripflow/pkg/engine"
)

// DefaultSweepSchedule runs the resumption sweep once a minute, matching
// the minute granularity of wait-step delays.
const DefaultSweepSchedule = "* * * * *"

// Sweeper periodically invokes the engine's scheduled-step resumption.
type Sweeper struct {
	engine   *engine.Engine
	logger   *slog.Logger
	schedule string
	cron     *cron.Cron
}

// NewSweeper creates a sweeper with the given cron schedule. An empty
// schedule uses DefaultSweepSchedule.
func NewSweeper(eng *engine.Engine, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return &Sweeper{
		engine:   eng,
		logger:   logger.With("module", "scheduler"),
		schedule: schedule,
	}, nil
}

// Start begins the periodic sweep. The context bounds each sweep run.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "resumption sweeper started", "schedule", s.schedule)

	return nil
}

// Sweep runs one resumption pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	resumed, err := s.engine.ResumeScheduledSteps(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "resumption sweep failed", "error", err)

		return
	}

	if resumed > 0 {
		s.logger.InfoContext(ctx, "resumption sweep finished", "resumed", resumed)
	}
}

// Stop halts the periodic sweep, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
	s.logger.Info("resumption sweeper stopped")
}
