package protocol

import (
	"context"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
)

// ContactStore is the contact-management collaborator the engine and step
// handlers mutate contacts through. All operations are tenant-scoped.
type ContactStore interface {
	GetContact(ctx context.Context, organizationID, contactID string) (*models.Contact, error)
	AddTag(ctx context.Context, organizationID, contactID, tag string) error
	RemoveTag(ctx context.Context, organizationID, contactID, tag string) error
	AddLeadScore(ctx context.Context, organizationID, contactID string, points int) error
}

// OutboundEmail is one rendered message handed to the email gateway.
type OutboundEmail struct {
	To         string
	Subject    string
	HTMLBody   string
	TextBody   string
	TrackingID string
	ContactID  string
}

// EmailGateway sends one rendered message to one address. Failures propagate
// as errors and enter the engine's retry path.
type EmailGateway interface {
	Send(ctx context.Context, email OutboundEmail) error
}

// NotificationSink receives best-effort lifecycle notifications. Sink
// failures must be swallowed by implementations; delivery never blocks
// execution progress.
type NotificationSink interface {
	AutomationStarted(ctx context.Context, execution *models.AutomationExecution, rule *models.AutomationRule)
	AutomationCompleted(ctx context.Context, execution *models.AutomationExecution)
	AutomationFailed(ctx context.Context, execution *models.AutomationExecution, reason string)
	AutomationCancelled(ctx context.Context, execution *models.AutomationExecution)
	AutomationWaiting(ctx context.Context, execution *models.AutomationExecution, stepID string, resumeAt time.Time)
	AutomationResumed(ctx context.Context, execution *models.AutomationExecution, stepID string)
	StepCompleted(ctx context.Context, execution *models.AutomationExecution, stepExecution *models.AutomationStepExecution)
	StepFailed(ctx context.Context, execution *models.AutomationExecution, stepExecution *models.AutomationStepExecution)
}
