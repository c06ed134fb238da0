// Package events defines event types for automation lifecycle notifications.
package events

import (
	"time"
)

type EventType string

// Kafka topics.
const Topic = "dripflow.events"                  // Topic for automation lifecycle events
const TriggerTopic = "dripflow.contact.triggers" // Topic for incoming contact trigger events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Trigger intake events.
	ContactTriggerEventType EventType = "contact.trigger"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionWaitingEvent   EventType = "execution.waiting"
	ExecutionResumedEvent   EventType = "execution.resumed"

	// Step events.
	StepCompletedEvent EventType = "step.completed"
	StepFailedEvent    EventType = "step.failed"
)

type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	OrganizationID string         `json:"organization_id"`
	RuleID         string         `json:"rule_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ContactTrigger is an incoming contact event that may start automations.
type ContactTrigger struct {
	BaseEvent

	TriggerType string         `json:"trigger_type"`
	ContactID   string         `json:"contact_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e ContactTrigger) GetType() EventType {
	return ContactTriggerEventType
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	RuleName    string         `json:"rule_name"`
	ContactID   string         `json:"contact_id"`
	TriggerType string         `json:"trigger_type"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	ContactID     string `json:"contact_id"`
	DurationMs    int64  `json:"duration_ms"`
	StepsExecuted int    `json:"steps_executed"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ContactID   string `json:"contact_id"`
	StepID      string `json:"step_id,omitempty"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ContactID   string `json:"contact_id"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

// ExecutionWaiting signals a run suspended on a wait step.
type ExecutionWaiting struct {
	BaseEvent

	ExecutionID  string    `json:"execution_id"`
	StepID       string    `json:"step_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

func (e ExecutionWaiting) GetType() EventType {
	return ExecutionWaitingEvent
}

// ExecutionResumed signals a suspended run picked back up by the sweeper.
type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type StepCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	StepID      string         `json:"step_id"`
	StepType    string         `json:"step_type"`
	OutputData  map[string]any `json:"output_data,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type StepFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	StepType    string `json:"step_type"`
	Error       string `json:"error"`
	RetryCount  int    `json:"retry_count"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}
