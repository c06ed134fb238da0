// Package protocol defines the interfaces and contracts between the
// execution engine, pluggable step handlers, and external collaborators.
package protocol

import (
	"context"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
)

// StepOutcome is the result of one successful handler invocation. Exactly
// one of the shape fields applies: a scheduled time suspends the execution,
// Skipped advances past the step, HaltRemaining skips every later step and
// completes the run, and otherwise the step simply completed with Output.
type StepOutcome struct {
	Output        map[string]any
	ScheduledFor  *time.Time
	Skipped       bool
	SkipReason    string
	HaltRemaining bool
}

// StepHandler executes one configured step against a live execution.
// Errors returned here enter the engine's retry path.
type StepHandler interface {
	Execute(ctx context.Context, execution *models.AutomationExecution) (*StepOutcome, error)
}

// StepHandlerFactory creates handler instances for one step kind. Create
// validates the step's settings; a validation error fails the attempt the
// same way a runtime error would.
type StepHandlerFactory interface {
	Create(ctx context.Context, stepID string, settings map[string]any) (StepHandler, error)
	ID() string
}
