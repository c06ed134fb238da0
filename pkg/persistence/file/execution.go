package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

const executionsDir = "executions"

// ExecutionRepository stores automation executions as one JSON file per run.
// A process-wide lock around Create stands in for the database constraint
// that keeps at most one active execution per (rule, contact) pair.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

// NewExecutionRepository creates a new file-based execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

// Create persists a new execution, rejecting it with
// ErrDuplicateActiveExecution when an active run already exists for the same
// rule and contact.
func (er *ExecutionRepository) Create(ctx context.Context, execution *models.AutomationExecution) error {
	if err := validateID(execution.ID); err != nil {
		return fmt.Errorf("invalid execution ID: %w", err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	existing, err := er.loadAll(ctx)
	if err != nil {
		return err
	}

	for _, other := range existing {
		if other.RuleID == execution.RuleID && other.ContactID == execution.ContactID && other.IsActive() {
			return persistence.ErrDuplicateActiveExecution
		}
	}

	return er.write(execution)
}

// GetByID reads one execution.
func (er *ExecutionRepository) GetByID(_ context.Context, executionID string) (*models.AutomationExecution, error) {
	return er.load(executionID)
}

// Update rewrites the execution file.
func (er *ExecutionRepository) Update(_ context.Context, execution *models.AutomationExecution) error {
	if err := validateID(execution.ID); err != nil {
		return fmt.Errorf("invalid execution ID: %w", err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	_, err := er.load(execution.ID)
	if err != nil {
		return err
	}

	return er.write(execution)
}

// ListByRule returns the rule's executions, optionally filtered by status,
// newest first.
func (er *ExecutionRepository) ListByRule(ctx context.Context, ruleID string, status *models.ExecutionStatus) ([]*models.AutomationExecution, error) {
	all, err := er.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.AutomationExecution, 0)

	for _, execution := range all {
		if execution.RuleID != ruleID {
			continue
		}

		if status != nil && execution.Status != *status {
			continue
		}

		executions = append(executions, execution)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}

func (er *ExecutionRepository) write(execution *models.AutomationExecution) error {
	_, err := ensureDir(er.root, executionsDir)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	err = os.WriteFile(entityPath(er.root, executionsDir, execution.ID), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write execution %s: %w", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) load(executionID string) (*models.AutomationExecution, error) {
	if err := validateID(executionID); err != nil {
		return nil, fmt.Errorf("invalid execution ID: %w", err)
	}

	data, err := os.ReadFile(entityPath(er.root, executionsDir, executionID)) // #nosec G304 -- ID is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to read execution %s: %w", executionID, err)
	}

	var execution models.AutomationExecution

	err = json.Unmarshal(data, &execution)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", executionID, err)
	}

	return &execution, nil
}

func (er *ExecutionRepository) loadAll(_ context.Context) ([]*models.AutomationExecution, error) {
	root := os.DirFS(er.root + "/" + executionsDir)

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.AutomationExecution, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		execution, err := er.load(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, nil
}
