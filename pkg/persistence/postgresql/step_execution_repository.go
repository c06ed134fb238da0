package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

// StepExecutionRepository handles per-step progress storage.
type StepExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStepExecutionRepository creates a new step execution repository.
func NewStepExecutionRepository(db *sql.DB, logger *slog.Logger) *StepExecutionRepository {
	return &StepExecutionRepository{db: db, logger: logger}
}

// CreateBatch inserts the full pending step list of a new execution in one
// transaction.
func (r *StepExecutionRepository) CreateBatch(ctx context.Context, stepExecutions []*models.AutomationStepExecution) error {
	if len(stepExecutions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	for _, se := range stepExecutions {
		inputJSON, outputJSON, err := marshalStepData(se)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO automation_step_executions (id, execution_id, step_id, step_type, position, status, scheduled_for, input_data, output_data, error_message, retry_count, started_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`,
			se.ID,
			se.ExecutionID,
			se.StepID,
			se.StepType,
			se.Position,
			se.Status,
			se.ScheduledFor,
			inputJSON,
			outputJSON,
			nullableString(se.ErrorMessage),
			se.RetryCount,
			se.StartedAt,
			se.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create step execution %s: %w", se.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit step executions: %w", err)
	}

	return nil
}

// Update rewrites the step execution's mutable fields.
func (r *StepExecutionRepository) Update(ctx context.Context, stepExecution *models.AutomationStepExecution) error {
	inputJSON, outputJSON, err := marshalStepData(stepExecution)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE automation_step_executions
		SET status = $2, scheduled_for = $3, input_data = $4, output_data = $5, error_message = $6, retry_count = $7, started_at = $8, completed_at = $9
		WHERE id = $1
	`,
		stepExecution.ID,
		stepExecution.Status,
		stepExecution.ScheduledFor,
		inputJSON,
		outputJSON,
		nullableString(stepExecution.ErrorMessage),
		stepExecution.RetryCount,
		stepExecution.StartedAt,
		stepExecution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update step execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrStepExecutionNotFound
	}

	return nil
}

// NextPending returns the pending step execution with the lowest position, or
// nil when none remain.
func (r *StepExecutionRepository) NextPending(ctx context.Context, executionID string) (*models.AutomationStepExecution, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, execution_id, step_id, step_type, position, status, scheduled_for, input_data, output_data, error_message, retry_count, started_at, completed_at
		FROM automation_step_executions
		WHERE execution_id = $1 AND status = $2
		ORDER BY position
		LIMIT 1
	`, executionID, models.StepStatusPending)

	stepExecution, err := scanStepExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan step execution: %w", err)
	}

	return stepExecution, nil
}

// ListByExecution returns all step executions of one run in position order.
func (r *StepExecutionRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.AutomationStepExecution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, execution_id, step_id, step_type, position, status, scheduled_for, input_data, output_data, error_message, retry_count, started_at, completed_at
		FROM automation_step_executions
		WHERE execution_id = $1
		ORDER BY position
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step executions: %w", err)
	}

	return r.collectStepExecutions(ctx, rows)
}

// DueScheduled returns scheduled step executions whose wake time has elapsed,
// oldest first.
func (r *StepExecutionRepository) DueScheduled(ctx context.Context, now time.Time) ([]*models.AutomationStepExecution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, execution_id, step_id, step_type, position, status, scheduled_for, input_data, output_data, error_message, retry_count, started_at, completed_at
		FROM automation_step_executions
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for
	`, models.StepStatusScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due step executions: %w", err)
	}

	return r.collectStepExecutions(ctx, rows)
}

func (r *StepExecutionRepository) collectStepExecutions(ctx context.Context, rows *sql.Rows) ([]*models.AutomationStepExecution, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var stepExecutions []*models.AutomationStepExecution

	for rows.Next() {
		stepExecution, err := scanStepExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step execution: %w", err)
		}

		stepExecutions = append(stepExecutions, stepExecution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step executions: %w", err)
	}

	return stepExecutions, nil
}

func scanStepExecution(scanner interface{ Scan(dest ...any) error }) (*models.AutomationStepExecution, error) {
	var (
		se                   models.AutomationStepExecution
		scheduledFor         sql.NullTime
		inputJSON, outputJSON []byte
		errorMessage         sql.NullString
		startedAt            sql.NullTime
		completedAt          sql.NullTime
	)

	err := scanner.Scan(
		&se.ID,
		&se.ExecutionID,
		&se.StepID,
		&se.StepType,
		&se.Position,
		&se.Status,
		&scheduledFor,
		&inputJSON,
		&outputJSON,
		&errorMessage,
		&se.RetryCount,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if scheduledFor.Valid {
		se.ScheduledFor = &scheduledFor.Time
	}

	if inputJSON != nil {
		err = json.Unmarshal(inputJSON, &se.InputData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal step input: %w", err)
		}
	}

	if outputJSON != nil {
		err = json.Unmarshal(outputJSON, &se.OutputData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal step output: %w", err)
		}
	}

	se.ErrorMessage = errorMessage.String

	if startedAt.Valid {
		se.StartedAt = &startedAt.Time
	}

	if completedAt.Valid {
		se.CompletedAt = &completedAt.Time
	}

	return &se, nil
}

func marshalStepData(se *models.AutomationStepExecution) ([]byte, []byte, error) {
	inputJSON, err := json.Marshal(se.InputData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal step input: %w", err)
	}

	outputJSON, err := json.Marshal(se.OutputData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal step output: %w", err)
	}

	return inputJSON, outputJSON, nil
}
