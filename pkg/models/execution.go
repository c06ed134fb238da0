package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the lifecycle state of one automation run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusWaiting   ExecutionStatus = "waiting"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// AutomationExecution is one run of a rule for one contact. The contact's
// email and name are snapshotted into the context at start time so later
// contact edits do not change in-flight runs.
//
// State machine: RUNNING <-> WAITING -> {COMPLETED | FAILED | CANCELLED}.
type AutomationExecution struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	RuleID         string          `json:"rule_id"`
	ContactID      string          `json:"contact_id"`
	ContactEmail   string          `json:"contact_email"`
	Status         ExecutionStatus `json:"status"`
	Context        map[string]any  `json:"context"`
	CurrentStepID  string          `json:"current_step_id,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// NewExecution creates a RUNNING execution for the given rule and contact,
// seeding the context with the trigger data plus a contact snapshot.
func NewExecution(rule *AutomationRule, contact *Contact, triggerContext map[string]any) *AutomationExecution {
	context := make(map[string]any, len(triggerContext)+4)
	for k, v := range triggerContext {
		context[k] = v
	}

	context["contactId"] = contact.ID
	context["contactEmail"] = contact.Email
	context["contactFirstName"] = contact.FirstName
	context["contactLastName"] = contact.LastName

	return &AutomationExecution{
		ID:             uuid.New().String(),
		OrganizationID: rule.OrganizationID,
		RuleID:         rule.ID,
		ContactID:      contact.ID,
		ContactEmail:   contact.Email,
		Status:         ExecutionStatusRunning,
		Context:        context,
		StartedAt:      time.Now().UTC(),
	}
}

// ExtendContext merges completed step output into the execution context so
// later steps can reference values produced by earlier ones.
func (e *AutomationExecution) ExtendContext(output map[string]any) {
	if len(output) == 0 {
		return
	}

	if e.Context == nil {
		e.Context = make(map[string]any, len(output))
	}

	for k, v := range output {
		e.Context[k] = v
	}
}

// IsActive reports whether the execution can still make progress.
func (e *AutomationExecution) IsActive() bool {
	return e.Status == ExecutionStatusRunning || e.Status == ExecutionStatusWaiting
}

// MarkWaiting suspends a running execution while a wait step is scheduled.
func (e *AutomationExecution) MarkWaiting() error {
	if e.Status != ExecutionStatusRunning {
		return fmt.Errorf("cannot wait from status %q", e.Status)
	}

	e.Status = ExecutionStatusWaiting

	return nil
}

// Resume moves a waiting execution back to running.
func (e *AutomationExecution) Resume() error {
	if e.Status != ExecutionStatusWaiting {
		return fmt.Errorf("cannot resume from status %q", e.Status)
	}

	e.Status = ExecutionStatusRunning

	return nil
}

// Complete finishes an active execution successfully.
func (e *AutomationExecution) Complete() error {
	if !e.IsActive() {
		return fmt.Errorf("cannot complete from status %q", e.Status)
	}

	e.Status = ExecutionStatusCompleted
	e.finish()

	return nil
}

// Fail terminates an active execution with an error message.
func (e *AutomationExecution) Fail(message string) error {
	if !e.IsActive() {
		return fmt.Errorf("cannot fail from status %q", e.Status)
	}

	e.Status = ExecutionStatusFailed
	e.ErrorMessage = message
	e.finish()

	return nil
}

// Cancel terminates an active execution by operator action.
func (e *AutomationExecution) Cancel() error {
	if !e.IsActive() {
		return fmt.Errorf("cannot cancel from status %q", e.Status)
	}

	e.Status = ExecutionStatusCancelled
	e.finish()

	return nil
}

func (e *AutomationExecution) finish() {
	now := time.Now().UTC()
	e.CompletedAt = &now
}
