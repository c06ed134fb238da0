package engine

import (
	"context"
	"fmt"

	"github.com/dripflow/dripflow/pkg/models"
)

// ResumeScheduledSteps sweeps over scheduled step executions whose wake time
// has elapsed, completes them, and resumes their executions. Failures on one
// item are logged and do not stop the sweep. Returns the number of
// executions resumed.
func (e *Engine) ResumeScheduledSteps(ctx context.Context) (int, error) {
	due, err := e.persistence.StepExecutionRepository().DueScheduled(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("failed to query due steps: %w", err)
	}

	resumed := 0

	for _, stepExecution := range due {
		err := e.resumeOne(ctx, stepExecution)
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to resume scheduled step",
				"step_execution_id", stepExecution.ID,
				"execution_id", stepExecution.ExecutionID,
				"error", err,
			)

			continue
		}

		resumed++
	}

	if resumed > 0 {
		e.logger.InfoContext(ctx, "resumed scheduled executions", "count", resumed)
	}

	return resumed, nil
}

func (e *Engine) resumeOne(ctx context.Context, stepExecution *models.AutomationStepExecution) error {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, stepExecution.ExecutionID)
	if err != nil {
		return fmt.Errorf("failed to load execution: %w", err)
	}

	// A cancel may have raced the sweep; leave the step for the cascade.
	if execution.Status != models.ExecutionStatusWaiting {
		return fmt.Errorf("execution is %s, not waiting", execution.Status)
	}

	// The wait handler's output was stored when the step was scheduled;
	// completion adds the elapsed marker on top of it.
	output := make(map[string]any, len(stepExecution.OutputData)+1)
	for k, v := range stepExecution.OutputData {
		output[k] = v
	}

	output["waited"] = true

	if err := stepExecution.Complete(output); err != nil {
		return err
	}

	err = e.persistence.StepExecutionRepository().Update(ctx, stepExecution)
	if err != nil {
		return fmt.Errorf("failed to persist resumed step: %w", err)
	}

	if err := execution.Resume(); err != nil {
		return err
	}

	execution.ExtendContext(output)

	err = e.persistence.ExecutionRepository().Update(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to persist resumed execution: %w", err)
	}

	e.notifier.AutomationResumed(ctx, execution, stepExecution.StepID)
	e.notifier.StepCompleted(ctx, execution, stepExecution)

	_, err = e.ProcessNextStep(ctx, execution.ID)

	return err
}
