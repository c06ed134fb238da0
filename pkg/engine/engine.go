// Package engine implements the durable automation execution engine: it
// starts runs, drives their step interpreter loop, suspends on wait steps,
// and resumes scheduled work.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/otelhelper"
	"github.com/dripflow/dripflow/pkg/persistence"
	"github.com/dripflow/dripflow/pkg/protocol"
	"github.com/dripflow/dripflow/pkg/registry"
)

// Engine executes automation rules for contacts. All state lives in the
// persistence layer, so any engine instance can pick up any run.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	notifier    protocol.NotificationSink
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

// NewEngine creates an execution engine. A nil tracer disables tracing.
func NewEngine(
	p persistence.Persistence,
	reg *registry.Registry,
	notifier protocol.NotificationSink,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Engine {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("engine")
	}

	return &Engine{
		persistence: p,
		registry:    reg,
		notifier:    notifier,
		tracer:      tracer,
		logger:      logger.With("module", "engine"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// StartAutomation begins a run of the rule for one contact. When an active
// run already exists for the same (rule, contact) pair the call is a no-op
// and returns nil. A missing contact is a hard error. A rule with no
// executable steps produces an immediately failed execution.
func (e *Engine) StartAutomation(ctx context.Context, rule *models.AutomationRule, contactID string, triggerContext map[string]any) (*models.AutomationExecution, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.start_automation",
		attribute.String(otelhelper.RuleIDKey, rule.ID),
		attribute.String(otelhelper.ContactIDKey, contactID),
		attribute.String(otelhelper.OrganizationIDKey, rule.OrganizationID),
	)
	defer span.End()

	contact, err := e.persistence.ContactRepository().GetByID(ctx, rule.OrganizationID, contactID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load contact %s: %w", contactID, err)
	}

	execution := models.NewExecution(rule, contact, triggerContext)

	err = e.persistence.ExecutionRepository().Create(ctx, execution)
	if err != nil {
		if persistence.IsDuplicateActiveExecution(err) {
			e.logger.InfoContext(ctx, "active execution already exists, skipping",
				"rule_id", rule.ID,
				"contact_id", contactID,
			)

			return nil, nil
		}

		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, execution.ID))

	steps := rule.Steps
	if len(steps) == 0 {
		steps, err = e.persistence.RuleRepository().StepsByRule(ctx, rule.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule steps: %w", err)
		}
	}

	if len(steps) == 0 {
		reason := fmt.Sprintf("automation rule %s has no executable steps", rule.ID)

		if err := execution.Fail(reason); err != nil {
			return nil, err
		}

		err = e.persistence.ExecutionRepository().Update(ctx, execution)
		if err != nil {
			return nil, fmt.Errorf("failed to persist failed execution: %w", err)
		}

		e.notifier.AutomationFailed(ctx, execution, reason)

		return execution, nil
	}

	stepExecutions := make([]*models.AutomationStepExecution, 0, len(steps))
	for i, step := range steps {
		stepExecutions = append(stepExecutions, models.NewStepExecution(execution.ID, step, i))
	}

	err = e.persistence.StepExecutionRepository().CreateBatch(ctx, stepExecutions)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to create step executions: %w", err)
	}

	e.logger.InfoContext(ctx, "automation started",
		"execution_id", execution.ID,
		"rule_id", rule.ID,
		"contact_id", contactID,
		"steps", len(stepExecutions),
	)

	e.notifier.AutomationStarted(ctx, execution, rule)

	return e.ProcessNextStep(ctx, execution.ID)
}

// ProcessNextStep drives the execution forward step by step until the run
// completes, fails terminally, or suspends on a wait step. Calling it on a
// terminal or waiting execution is a no-op.
func (e *Engine) ProcessNextStep(ctx context.Context, executionID string) (*models.AutomationExecution, error) {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution %s: %w", executionID, err)
	}

	if execution.Status != models.ExecutionStatusRunning {
		return execution, nil
	}

	stepRepo := e.persistence.StepExecutionRepository()

	for {
		stepExecution, err := stepRepo.NextPending(ctx, execution.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to select next step: %w", err)
		}

		if stepExecution == nil {
			return execution, e.completeExecution(ctx, execution)
		}

		execution.CurrentStepID = stepExecution.StepID

		if err := e.persistence.ExecutionRepository().Update(ctx, execution); err != nil {
			return nil, fmt.Errorf("failed to persist current step pointer: %w", err)
		}

		outcome, stepErr := e.executeStep(ctx, execution, stepExecution)
		if stepErr != nil {
			return execution, e.failExecution(ctx, execution, stepExecution, stepErr)
		}

		if outcome.ScheduledFor != nil {
			return execution, e.suspendExecution(ctx, execution, stepExecution, outcome)
		}

		if outcome.Skipped {
			continue
		}

		if err := stepExecution.Complete(outcome.Output); err != nil {
			return nil, err
		}

		if err := stepRepo.Update(ctx, stepExecution); err != nil {
			return nil, fmt.Errorf("failed to persist step completion: %w", err)
		}

		execution.ExtendContext(outcome.Output)

		if err := e.persistence.ExecutionRepository().Update(ctx, execution); err != nil {
			return nil, fmt.Errorf("failed to persist extended context: %w", err)
		}

		e.notifier.StepCompleted(ctx, execution, stepExecution)

		if outcome.HaltRemaining {
			if err := e.skipRemaining(ctx, execution, "halted by condition"); err != nil {
				return nil, err
			}

			return execution, e.completeExecution(ctx, execution)
		}
	}
}

// executeStep runs one step with up to MaxStepAttempts synchronous
// attempts. Unknown step types resolve to a skipped outcome instead of a
// failure. A non-nil error means the attempts are exhausted.
func (e *Engine) executeStep(ctx context.Context, execution *models.AutomationExecution, stepExecution *models.AutomationStepExecution) (*protocol.StepOutcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.execute_step",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.StepIDKey, stepExecution.StepID),
		attribute.String(otelhelper.StepTypeKey, string(stepExecution.StepType)),
	)
	defer span.End()

	stepRepo := e.persistence.StepExecutionRepository()

	for {
		if err := stepExecution.Start(); err != nil {
			return nil, err
		}

		if err := stepRepo.Update(ctx, stepExecution); err != nil {
			return nil, fmt.Errorf("failed to persist step start: %w", err)
		}

		outcome, err := e.runAttempt(ctx, execution, stepExecution)
		if err == nil {
			if outcome.Skipped {
				if skipErr := stepExecution.Skip(outcome.SkipReason); skipErr != nil {
					return nil, skipErr
				}

				if updErr := stepRepo.Update(ctx, stepExecution); updErr != nil {
					return nil, fmt.Errorf("failed to persist step skip: %w", updErr)
				}

				e.logger.InfoContext(ctx, "step skipped",
					"execution_id", execution.ID,
					"step_id", stepExecution.StepID,
					"reason", outcome.SkipReason,
				)
			}

			return outcome, nil
		}

		stepExecution.RetryCount++

		message := fmt.Sprintf("attempt %d/%d: %v", stepExecution.RetryCount, models.MaxStepAttempts, err)
		if failErr := stepExecution.Fail(message); failErr != nil {
			return nil, failErr
		}

		if updErr := stepRepo.Update(ctx, stepExecution); updErr != nil {
			return nil, fmt.Errorf("failed to persist step failure: %w", updErr)
		}

		e.notifier.StepFailed(ctx, execution, stepExecution)

		if !stepExecution.CanRetry() {
			otelhelper.SetError(span, err)

			return nil, err
		}

		e.logger.WarnContext(ctx, "step attempt failed, retrying",
			"execution_id", execution.ID,
			"step_id", stepExecution.StepID,
			"attempt", stepExecution.RetryCount,
			"error", err,
		)
	}
}

// runAttempt performs a single handler invocation. Missing handlers map to
// a skipped outcome.
func (e *Engine) runAttempt(ctx context.Context, execution *models.AutomationExecution, stepExecution *models.AutomationStepExecution) (*protocol.StepOutcome, error) {
	handler, err := e.registry.CreateHandler(ctx, stepExecution.StepType, stepExecution.StepID, stepExecution.InputData)
	if err != nil {
		if errors.Is(err, registry.ErrHandlerNotRegistered) {
			return &protocol.StepOutcome{
				Skipped:    true,
				SkipReason: fmt.Sprintf("no handler registered for step type %q", stepExecution.StepType),
			}, nil
		}

		return nil, err
	}

	outcome, err := handler.Execute(ctx, execution)
	if err != nil {
		return nil, err
	}

	if outcome == nil {
		outcome = &protocol.StepOutcome{}
	}

	return outcome, nil
}

func (e *Engine) completeExecution(ctx context.Context, execution *models.AutomationExecution) error {
	if err := execution.Complete(); err != nil {
		return err
	}

	err := e.persistence.ExecutionRepository().Update(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to persist execution completion: %w", err)
	}

	e.logger.InfoContext(ctx, "automation completed", "execution_id", execution.ID)
	e.notifier.AutomationCompleted(ctx, execution)

	return nil
}

func (e *Engine) failExecution(ctx context.Context, execution *models.AutomationExecution, stepExecution *models.AutomationStepExecution, cause error) error {
	reason := fmt.Sprintf("step %s failed after %d attempts: %v", stepExecution.StepID, stepExecution.RetryCount, cause)

	if err := execution.Fail(reason); err != nil {
		return err
	}

	err := e.persistence.ExecutionRepository().Update(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to persist execution failure: %w", err)
	}

	e.logger.ErrorContext(ctx, "automation failed",
		"execution_id", execution.ID,
		"step_id", stepExecution.StepID,
		"error", cause,
	)
	e.notifier.AutomationFailed(ctx, execution, reason)

	return nil
}

func (e *Engine) suspendExecution(ctx context.Context, execution *models.AutomationExecution, stepExecution *models.AutomationStepExecution, outcome *protocol.StepOutcome) error {
	at := *outcome.ScheduledFor

	// Keep the handler's output on the scheduled row so the wake time is
	// queryable while the run sleeps.
	stepExecution.OutputData = outcome.Output

	if err := stepExecution.Schedule(at); err != nil {
		return err
	}

	err := e.persistence.StepExecutionRepository().Update(ctx, stepExecution)
	if err != nil {
		return fmt.Errorf("failed to persist step schedule: %w", err)
	}

	if err := execution.MarkWaiting(); err != nil {
		return err
	}

	err = e.persistence.ExecutionRepository().Update(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to persist waiting execution: %w", err)
	}

	e.logger.InfoContext(ctx, "automation waiting",
		"execution_id", execution.ID,
		"step_id", stepExecution.StepID,
		"scheduled_for", at,
	)
	e.notifier.AutomationWaiting(ctx, execution, stepExecution.StepID, at)

	return nil
}

func (e *Engine) skipRemaining(ctx context.Context, execution *models.AutomationExecution, reason string) error {
	stepRepo := e.persistence.StepExecutionRepository()

	steps, err := stepRepo.ListByExecution(ctx, execution.ID)
	if err != nil {
		return fmt.Errorf("failed to list step executions: %w", err)
	}

	for _, se := range steps {
		if se.Status != models.StepStatusPending && se.Status != models.StepStatusScheduled {
			continue
		}

		if err := se.Skip(reason); err != nil {
			return err
		}

		if err := stepRepo.Update(ctx, se); err != nil {
			return fmt.Errorf("failed to persist step skip: %w", err)
		}
	}

	return nil
}
