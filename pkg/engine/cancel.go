package engine

import (
	"context"
	"fmt"

	"github.com/dripflow/dripflow/pkg/models"
)

// CancelExecution terminates an active execution and cascade-skips its
// pending and scheduled steps so step-status queries stay consistent.
func (e *Engine) CancelExecution(ctx context.Context, executionID string) (*models.AutomationExecution, error) {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution %s: %w", executionID, err)
	}

	if err := execution.Cancel(); err != nil {
		return nil, err
	}

	err = e.persistence.ExecutionRepository().Update(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to persist cancellation: %w", err)
	}

	if err := e.skipRemaining(ctx, execution, "execution cancelled"); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "automation cancelled", "execution_id", executionID)
	e.notifier.AutomationCancelled(ctx, execution)

	return execution, nil
}
