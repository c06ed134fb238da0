package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

var executionStatuses = map[models.ExecutionStatus]bool{
	models.ExecutionStatusRunning:   true,
	models.ExecutionStatusWaiting:   true,
	models.ExecutionStatusCompleted: true,
	models.ExecutionStatusFailed:    true,
	models.ExecutionStatusCancelled: true,
}

// Executions is the execution query and control service.
type Executions struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	logger      *slog.Logger
}

// NewExecutions creates the execution service.
func NewExecutions(p persistence.Persistence, eng *engine.Engine, logger *slog.Logger) *Executions {
	return &Executions{
		persistence: p,
		engine:      eng,
		logger:      logger.With("module", "execution_service"),
	}
}

// ExecutionDetail pairs an execution with its step progress.
type ExecutionDetail struct {
	Execution *models.AutomationExecution       `json:"execution"`
	Steps     []*models.AutomationStepExecution `json:"steps"`
}

// ListByRule returns the rule's executions, optionally filtered by status.
// The rule lookup also enforces tenant scoping.
func (s *Executions) ListByRule(ctx context.Context, organizationID, ruleID, status string) ([]*models.AutomationExecution, error) {
	_, err := s.persistence.RuleRepository().GetByID(ctx, organizationID, ruleID)
	if err != nil {
		return nil, err
	}

	var statusFilter *models.ExecutionStatus

	if status != "" {
		parsed := models.ExecutionStatus(status)
		if !executionStatuses[parsed] {
			return nil, &ServiceError{
				Op:  "list_executions",
				Err: fmt.Errorf("%w: %q", ErrInvalidStatusFilter, status),
			}
		}

		statusFilter = &parsed
	}

	return s.persistence.ExecutionRepository().ListByRule(ctx, ruleID, statusFilter)
}

// Get returns one execution with its step executions, scoped to the
// organization.
func (s *Executions) Get(ctx context.Context, organizationID, executionID string) (*ExecutionDetail, error) {
	execution, err := s.load(ctx, organizationID, executionID)
	if err != nil {
		return nil, err
	}

	steps, err := s.persistence.StepExecutionRepository().ListByExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	return &ExecutionDetail{Execution: execution, Steps: steps}, nil
}

// Cancel terminates an active execution via the engine's cancellation
// cascade.
func (s *Executions) Cancel(ctx context.Context, organizationID, executionID string) (*models.AutomationExecution, error) {
	execution, err := s.load(ctx, organizationID, executionID)
	if err != nil {
		return nil, err
	}

	if !execution.IsActive() {
		return nil, &ServiceError{
			Op:  "cancel_execution",
			Err: fmt.Errorf("%w: status is %s", ErrExecutionNotActive, execution.Status),
		}
	}

	return s.engine.CancelExecution(ctx, executionID)
}

func (s *Executions) load(ctx context.Context, organizationID, executionID string) (*models.AutomationExecution, error) {
	execution, err := s.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.OrganizationID != organizationID {
		return nil, persistence.ErrExecutionNotFound
	}

	return execution, nil
}
