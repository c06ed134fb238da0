package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

const stepExecutionsDir = "step_executions"

// StepExecutionRepository stores per-step progress records as one JSON file
// per step execution.
type StepExecutionRepository struct {
	root string
}

// NewStepExecutionRepository creates a new file-based step execution
// repository.
func NewStepExecutionRepository(root string) *StepExecutionRepository {
	return &StepExecutionRepository{root: root}
}

// CreateBatch persists the full pending step list of a new execution.
func (sr *StepExecutionRepository) CreateBatch(_ context.Context, stepExecutions []*models.AutomationStepExecution) error {
	for _, se := range stepExecutions {
		err := sr.write(se)
		if err != nil {
			return err
		}
	}

	return nil
}

// Update rewrites the step execution file.
func (sr *StepExecutionRepository) Update(_ context.Context, stepExecution *models.AutomationStepExecution) error {
	if err := validateID(stepExecution.ID); err != nil {
		return fmt.Errorf("invalid step execution ID: %w", err)
	}

	if _, err := os.Stat(entityPath(sr.root, stepExecutionsDir, stepExecution.ID)); os.IsNotExist(err) {
		return persistence.ErrStepExecutionNotFound
	}

	return sr.write(stepExecution)
}

// NextPending returns the pending step execution with the lowest position,
// or nil when none remain.
func (sr *StepExecutionRepository) NextPending(ctx context.Context, executionID string) (*models.AutomationStepExecution, error) {
	steps, err := sr.ListByExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	for _, se := range steps {
		if se.Status == models.StepStatusPending {
			return se, nil
		}
	}

	return nil, nil
}

// ListByExecution returns all step executions of one run in position order.
func (sr *StepExecutionRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.AutomationStepExecution, error) {
	all, err := sr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	steps := make([]*models.AutomationStepExecution, 0)

	for _, se := range all {
		if se.ExecutionID == executionID {
			steps = append(steps, se)
		}
	}

	sort.Slice(steps, func(i, j int) bool {
		return steps[i].Position < steps[j].Position
	})

	return steps, nil
}

// DueScheduled returns scheduled step executions whose wake time has
// elapsed, oldest first.
func (sr *StepExecutionRepository) DueScheduled(ctx context.Context, now time.Time) ([]*models.AutomationStepExecution, error) {
	all, err := sr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	due := make([]*models.AutomationStepExecution, 0)

	for _, se := range all {
		if se.Status == models.StepStatusScheduled && se.ScheduledFor != nil && !se.ScheduledFor.After(now) {
			due = append(due, se)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(*due[j].ScheduledFor)
	})

	return due, nil
}

func (sr *StepExecutionRepository) write(se *models.AutomationStepExecution) error {
	if err := validateID(se.ID); err != nil {
		return fmt.Errorf("invalid step execution ID: %w", err)
	}

	_, err := ensureDir(sr.root, stepExecutionsDir)
	if err != nil {
		return fmt.Errorf("failed to create step executions directory: %w", err)
	}

	data, err := json.Marshal(se)
	if err != nil {
		return fmt.Errorf("failed to marshal step execution %s: %w", se.ID, err)
	}

	err = os.WriteFile(entityPath(sr.root, stepExecutionsDir, se.ID), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write step execution %s: %w", se.ID, err)
	}

	return nil
}

func (sr *StepExecutionRepository) loadAll(_ context.Context) ([]*models.AutomationStepExecution, error) {
	root := os.DirFS(sr.root + "/" + stepExecutionsDir)

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list step execution files: %w", err)
	}

	steps := make([]*models.AutomationStepExecution, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := strings.TrimSuffix(file, ".json")

		data, err := os.ReadFile(entityPath(sr.root, stepExecutionsDir, id)) // #nosec G304 -- listed from the directory
		if err != nil {
			return nil, fmt.Errorf("failed to read step execution %s: %w", id, err)
		}

		var se models.AutomationStepExecution

		err = json.Unmarshal(data, &se)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal step execution %s: %w", id, err)
		}

		steps = append(steps, &se)
	}

	return steps, nil
}
