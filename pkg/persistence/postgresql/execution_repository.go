package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

const uniqueViolationCode = "23505"

// ExecutionRepository handles automation execution storage.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Create inserts a new execution. The partial unique index on
// (rule_id, contact_id) for active statuses rejects a second concurrent run;
// that violation surfaces as ErrDuplicateActiveExecution.
func (r *ExecutionRepository) Create(ctx context.Context, execution *models.AutomationExecution) error {
	contextJSON, err := json.Marshal(execution.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal execution context: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO automation_executions (id, organization_id, rule_id, contact_id, contact_email, status, context, current_step_id, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		execution.ID,
		execution.OrganizationID,
		execution.RuleID,
		execution.ContactID,
		execution.ContactEmail,
		execution.Status,
		contextJSON,
		nullableString(execution.CurrentStepID),
		nullableString(execution.ErrorMessage),
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return persistence.ErrDuplicateActiveExecution
		}

		return &persistence.ExecutionError{Op: "create", ExecutionID: execution.ID, Err: err}
	}

	return nil
}

// GetByID retrieves an execution by ID.
func (r *ExecutionRepository) GetByID(ctx context.Context, executionID string) (*models.AutomationExecution, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, rule_id, contact_id, contact_email, status, context, current_step_id, error_message, started_at, completed_at
		FROM automation_executions
		WHERE id = $1
	`, executionID)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, &persistence.ExecutionError{Op: "get", ExecutionID: executionID, Err: err}
	}

	return execution, nil
}

// Update rewrites the execution's mutable fields.
func (r *ExecutionRepository) Update(ctx context.Context, execution *models.AutomationExecution) error {
	contextJSON, err := json.Marshal(execution.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal execution context: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE automation_executions
		SET status = $2, context = $3, current_step_id = $4, error_message = $5, completed_at = $6
		WHERE id = $1
	`,
		execution.ID,
		execution.Status,
		contextJSON,
		nullableString(execution.CurrentStepID),
		nullableString(execution.ErrorMessage),
		execution.CompletedAt,
	)
	if err != nil {
		return &persistence.ExecutionError{Op: "update", ExecutionID: execution.ID, Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &persistence.ExecutionError{Op: "update", ExecutionID: execution.ID, Err: err}
	}

	if affected == 0 {
		return persistence.ErrExecutionNotFound
	}

	return nil
}

// ListByRule returns the rule's executions, optionally filtered by status,
// newest first.
func (r *ExecutionRepository) ListByRule(ctx context.Context, ruleID string, status *models.ExecutionStatus) ([]*models.AutomationExecution, error) {
	query := `
		SELECT id, organization_id, rule_id, contact_id, contact_email, status, context, current_step_id, error_message, started_at, completed_at
		FROM automation_executions
		WHERE rule_id = $1
	`
	args := []any{ruleID}

	if status != nil {
		query += " AND status = $2"
		args = append(args, *status)
	}

	query += " ORDER BY started_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	var executions []*models.AutomationExecution

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(scanner interface{ Scan(dest ...any) error }) (*models.AutomationExecution, error) {
	var (
		execution     models.AutomationExecution
		contextJSON   []byte
		currentStepID sql.NullString
		errorMessage  sql.NullString
		completedAt   sql.NullTime
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.OrganizationID,
		&execution.RuleID,
		&execution.ContactID,
		&execution.ContactEmail,
		&execution.Status,
		&contextJSON,
		&currentStepID,
		&errorMessage,
		&execution.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if contextJSON != nil {
		err = json.Unmarshal(contextJSON, &execution.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution context: %w", err)
		}
	}

	execution.CurrentStepID = currentStepID.String
	execution.ErrorMessage = errorMessage.String

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	return &execution, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
