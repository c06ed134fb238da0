package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxStepAttempts is the retry ceiling for one step: the first attempt plus
// two retries.
const MaxStepAttempts = 3

// StepExecutionStatus is the lifecycle state of one step within one run.
type StepExecutionStatus string

const (
	StepStatusPending   StepExecutionStatus = "pending"
	StepStatusRunning   StepExecutionStatus = "running"
	StepStatusCompleted StepExecutionStatus = "completed"
	StepStatusFailed    StepExecutionStatus = "failed"
	StepStatusSkipped   StepExecutionStatus = "skipped"
	StepStatusScheduled StepExecutionStatus = "scheduled"
)

// AutomationStepExecution tracks one step's progress within one execution.
// All step executions of a run are created up front, PENDING, in step order;
// Position records that creation order and drives FIFO selection.
//
// State machine: PENDING -> RUNNING -> {COMPLETED | FAILED | SKIPPED}, with
// RUNNING -> SCHEDULED -> COMPLETED for wait steps. FAILED loops back to
// RUNNING until MaxStepAttempts is reached.
type AutomationStepExecution struct {
	ID           string              `json:"id"`
	ExecutionID  string              `json:"execution_id"`
	StepID       string              `json:"step_id"`
	StepType     StepType            `json:"step_type"`
	Position     int                 `json:"position"`
	Status       StepExecutionStatus `json:"status"`
	ScheduledFor *time.Time          `json:"scheduled_for,omitempty"`
	InputData    map[string]any      `json:"input_data,omitempty"`
	OutputData   map[string]any      `json:"output_data,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	RetryCount   int                 `json:"retry_count"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// NewStepExecution creates a PENDING step execution for one parsed step,
// snapshotting the step's settings as input data so the step is never
// re-parsed during execution.
func NewStepExecution(executionID string, step *AutomationStep, position int) *AutomationStepExecution {
	input := make(map[string]any, len(step.Settings))
	for k, v := range step.Settings {
		input[k] = v
	}

	return &AutomationStepExecution{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		StepID:      step.ID,
		StepType:    step.Type,
		Position:    position,
		Status:      StepStatusPending,
		InputData:   input,
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s *AutomationStepExecution) IsTerminal() bool {
	switch s.Status {
	case StepStatusCompleted, StepStatusSkipped:
		return true
	case StepStatusFailed:
		return s.RetryCount >= MaxStepAttempts
	default:
		return false
	}
}

// Start moves the step execution to RUNNING. PENDING starts the first
// attempt; FAILED re-enters RUNNING for a retry.
func (s *AutomationStepExecution) Start() error {
	if s.Status != StepStatusPending && s.Status != StepStatusFailed {
		return fmt.Errorf("cannot start step execution from status %q", s.Status)
	}

	s.Status = StepStatusRunning
	now := time.Now().UTC()
	s.StartedAt = &now

	return nil
}

// Complete finishes the step successfully and records its output. SCHEDULED
// resolves to COMPLETED here when a wait elapses.
func (s *AutomationStepExecution) Complete(output map[string]any) error {
	if s.Status != StepStatusRunning && s.Status != StepStatusScheduled {
		return fmt.Errorf("cannot complete step execution from status %q", s.Status)
	}

	s.Status = StepStatusCompleted
	s.OutputData = output
	now := time.Now().UTC()
	s.CompletedAt = &now

	return nil
}

// Fail records a failed attempt. The step stays retryable until RetryCount
// reaches MaxStepAttempts.
func (s *AutomationStepExecution) Fail(message string) error {
	if s.Status != StepStatusRunning {
		return fmt.Errorf("cannot fail step execution from status %q", s.Status)
	}

	s.Status = StepStatusFailed
	s.ErrorMessage = message

	if s.RetryCount >= MaxStepAttempts {
		now := time.Now().UTC()
		s.CompletedAt = &now
	}

	return nil
}

// Schedule suspends a running wait step until the given time.
func (s *AutomationStepExecution) Schedule(at time.Time) error {
	if s.Status != StepStatusRunning {
		return fmt.Errorf("cannot schedule step execution from status %q", s.Status)
	}

	s.Status = StepStatusScheduled
	s.ScheduledFor = &at

	return nil
}

// Skip marks the step as intentionally not executed.
func (s *AutomationStepExecution) Skip(reason string) error {
	if s.IsTerminal() {
		return fmt.Errorf("cannot skip step execution from status %q", s.Status)
	}

	s.Status = StepStatusSkipped
	s.ErrorMessage = reason
	now := time.Now().UTC()
	s.CompletedAt = &now

	return nil
}

// CanRetry reports whether another attempt is allowed after a failure.
func (s *AutomationStepExecution) CanRetry() bool {
	return s.RetryCount < MaxStepAttempts
}
