// Package notify delivers best-effort lifecycle notifications: an in-app
// notification row plus an event on the bus. Failures are logged and
// swallowed so notification trouble never blocks execution progress.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dripflow/dripflow/pkg/eventbus"
	"github.com/dripflow/dripflow/pkg/events"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
	"github.com/dripflow/dripflow/pkg/protocol"
)

// Sink implements protocol.NotificationSink.
type Sink struct {
	notifications persistence.NotificationRepository
	publisher     eventbus.EventPublisher
	logger        *slog.Logger
}

// NewSink creates a notification sink. The publisher may be nil, in which
// case only notification rows are written.
func NewSink(notifications persistence.NotificationRepository, publisher eventbus.EventPublisher, logger *slog.Logger) *Sink {
	return &Sink{
		notifications: notifications,
		publisher:     publisher,
		logger:        logger.With("module", "notify"),
	}
}

// AutomationStarted records that a rule began running for a contact.
func (s *Sink) AutomationStarted(ctx context.Context, execution *models.AutomationExecution, rule *models.AutomationRule) {
	message := fmt.Sprintf("Automation %q started for %s", rule.Name, execution.ContactEmail)
	s.record(ctx, execution, models.NotificationAutomationStarted, message)

	s.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:   s.baseEvent(events.ExecutionStartedEvent, execution),
		ExecutionID: execution.ID,
		RuleName:    rule.Name,
		ContactID:   execution.ContactID,
		TriggerType: string(rule.TriggerType),
	})
}

// AutomationCompleted records a successful run.
func (s *Sink) AutomationCompleted(ctx context.Context, execution *models.AutomationExecution) {
	message := fmt.Sprintf("Automation completed for %s", execution.ContactEmail)
	s.record(ctx, execution, models.NotificationAutomationCompleted, message)

	var durationMs int64
	if execution.CompletedAt != nil {
		durationMs = execution.CompletedAt.Sub(execution.StartedAt).Milliseconds()
	}

	s.publish(ctx, execution.ID, events.ExecutionCompleted{
		BaseEvent:   s.baseEvent(events.ExecutionCompletedEvent, execution),
		ExecutionID: execution.ID,
		ContactID:   execution.ContactID,
		DurationMs:  durationMs,
	})
}

// AutomationFailed records a terminally failed run.
func (s *Sink) AutomationFailed(ctx context.Context, execution *models.AutomationExecution, reason string) {
	message := fmt.Sprintf("Automation failed for %s: %s", execution.ContactEmail, reason)
	s.record(ctx, execution, models.NotificationAutomationFailed, message)

	s.publish(ctx, execution.ID, events.ExecutionFailed{
		BaseEvent:   s.baseEvent(events.ExecutionFailedEvent, execution),
		ExecutionID: execution.ID,
		ContactID:   execution.ContactID,
		Error:       reason,
	})
}

// AutomationCancelled records an operator-cancelled run.
func (s *Sink) AutomationCancelled(ctx context.Context, execution *models.AutomationExecution) {
	message := fmt.Sprintf("Automation cancelled for %s", execution.ContactEmail)
	s.record(ctx, execution, models.NotificationAutomationCancelled, message)

	s.publish(ctx, execution.ID, events.ExecutionCancelled{
		BaseEvent:   s.baseEvent(events.ExecutionCancelledEvent, execution),
		ExecutionID: execution.ID,
		ContactID:   execution.ContactID,
	})
}

// AutomationWaiting publishes that a run suspended on a wait step. Waits are
// routine, so no notification row is written.
func (s *Sink) AutomationWaiting(ctx context.Context, execution *models.AutomationExecution, stepID string, resumeAt time.Time) {
	s.publish(ctx, execution.ID, events.ExecutionWaiting{
		BaseEvent:    s.baseEvent(events.ExecutionWaitingEvent, execution),
		ExecutionID:  execution.ID,
		StepID:       stepID,
		ScheduledFor: resumeAt,
	})
}

// AutomationResumed publishes that the sweeper picked a suspended run back up.
func (s *Sink) AutomationResumed(ctx context.Context, execution *models.AutomationExecution, stepID string) {
	s.publish(ctx, execution.ID, events.ExecutionResumed{
		BaseEvent:   s.baseEvent(events.ExecutionResumedEvent, execution),
		ExecutionID: execution.ID,
		StepID:      stepID,
	})
}

// StepCompleted publishes one finished step with its output.
func (s *Sink) StepCompleted(ctx context.Context, execution *models.AutomationExecution, stepExecution *models.AutomationStepExecution) {
	var durationMs int64
	if stepExecution.StartedAt != nil && stepExecution.CompletedAt != nil {
		durationMs = stepExecution.CompletedAt.Sub(*stepExecution.StartedAt).Milliseconds()
	}

	base := s.baseEvent(events.StepCompletedEvent, execution)
	base.ID = stepExecution.ID + "-" + string(events.StepCompletedEvent)

	s.publish(ctx, execution.ID, events.StepCompleted{
		BaseEvent:   base,
		ExecutionID: execution.ID,
		StepID:      stepExecution.StepID,
		StepType:    string(stepExecution.StepType),
		OutputData:  stepExecution.OutputData,
		DurationMs:  durationMs,
	})
}

// StepFailed publishes one failed step attempt. Each retryable failure
// produces its own event, distinguished by the attempt count.
func (s *Sink) StepFailed(ctx context.Context, execution *models.AutomationExecution, stepExecution *models.AutomationStepExecution) {
	base := s.baseEvent(events.StepFailedEvent, execution)
	base.ID = fmt.Sprintf("%s-%s-%d", stepExecution.ID, events.StepFailedEvent, stepExecution.RetryCount)

	s.publish(ctx, execution.ID, events.StepFailed{
		BaseEvent:   base,
		ExecutionID: execution.ID,
		StepID:      stepExecution.StepID,
		StepType:    string(stepExecution.StepType),
		Error:       stepExecution.ErrorMessage,
		RetryCount:  stepExecution.RetryCount,
	})
}

func (s *Sink) record(ctx context.Context, execution *models.AutomationExecution, kind models.NotificationKind, message string) {
	notification := models.NewNotification(execution.OrganizationID, kind, message)

	err := s.notifications.Create(ctx, notification)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to store notification",
			"execution_id", execution.ID,
			"kind", kind,
			"error", err,
		)
	}
}

func (s *Sink) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	err := s.publisher.Publish(ctx, key, event)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish lifecycle event",
			"event_type", event.GetType(),
			"error", err,
		)
	}
}

func (s *Sink) baseEvent(eventType events.EventType, execution *models.AutomationExecution) events.BaseEvent {
	return events.BaseEvent{
		ID:             execution.ID + "-" + string(eventType),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		OrganizationID: execution.OrganizationID,
		RuleID:         execution.RuleID,
	}
}

var _ protocol.NotificationSink = (*Sink)(nil)
