// Package persistence provides the data storage abstraction for automation
// rules, contacts, and durable execution state.
package persistence

import (
	"context"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
)

type Persistence interface {
	RuleRepository() RuleRepository
	ContactRepository() ContactRepository
	ExecutionRepository() ExecutionRepository
	StepExecutionRepository() StepExecutionRepository
	NotificationRepository() NotificationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// RuleRepository stores automation rules together with their parsed steps.
type RuleRepository interface {
	// Save persists the rule and replaces its parsed steps atomically.
	Save(ctx context.Context, rule *models.AutomationRule) error
	GetByID(ctx context.Context, organizationID, ruleID string) (*models.AutomationRule, error)
	List(ctx context.Context, organizationID string) ([]*models.AutomationRule, error)
	// ListActiveByTrigger returns active rules for one trigger type, used by
	// trigger intake to fan out to matching automations.
	ListActiveByTrigger(ctx context.Context, organizationID string, trigger models.TriggerType) ([]*models.AutomationRule, error)
	// StepsByRule returns the rule's parsed steps in position order.
	StepsByRule(ctx context.Context, ruleID string) ([]*models.AutomationStep, error)
	Delete(ctx context.Context, organizationID, ruleID string) error
}

type ContactRepository interface {
	GetByID(ctx context.Context, organizationID, contactID string) (*models.Contact, error)
	Save(ctx context.Context, contact *models.Contact) error
}

// ExecutionRepository stores automation executions. Create enforces the
// at-most-one-active invariant per (rule, contact) pair and returns
// ErrDuplicateActiveExecution when it would be violated.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.AutomationExecution) error
	GetByID(ctx context.Context, executionID string) (*models.AutomationExecution, error)
	Update(ctx context.Context, execution *models.AutomationExecution) error
	ListByRule(ctx context.Context, ruleID string, status *models.ExecutionStatus) ([]*models.AutomationExecution, error)
}

// StepExecutionRepository stores per-step progress records.
type StepExecutionRepository interface {
	// CreateBatch persists the full PENDING step list of a new execution.
	CreateBatch(ctx context.Context, stepExecutions []*models.AutomationStepExecution) error
	Update(ctx context.Context, stepExecution *models.AutomationStepExecution) error
	// NextPending returns the PENDING step execution with the lowest
	// position, or nil when none remain.
	NextPending(ctx context.Context, executionID string) (*models.AutomationStepExecution, error)
	ListByExecution(ctx context.Context, executionID string) ([]*models.AutomationStepExecution, error)
	// DueScheduled returns all SCHEDULED step executions whose scheduled
	// time has elapsed.
	DueScheduled(ctx context.Context, now time.Time) ([]*models.AutomationStepExecution, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
}
