// Package triggers turns incoming contact events into automation starts.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/events"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

// TriggerEvent is one contact event delivered by an intake channel.
type TriggerEvent struct {
	OrganizationID string         `json:"organization_id"`
	TriggerType    string         `json:"trigger_type"`
	ContactID      string         `json:"contact_id"`
	Data           map[string]any `json:"data,omitempty"`
}

// Validate checks the event carries the fields matching needs.
func (e *TriggerEvent) Validate() error {
	if e.OrganizationID == "" {
		return errors.New("trigger event requires an organization_id")
	}

	if e.TriggerType == "" {
		return errors.New("trigger event requires a trigger_type")
	}

	if e.ContactID == "" {
		return errors.New("trigger event requires a contact_id")
	}

	return nil
}

// FromContactTrigger converts a bus-delivered contact event into an intake
// trigger event.
func FromContactTrigger(event *events.ContactTrigger) TriggerEvent {
	return TriggerEvent{
		OrganizationID: event.OrganizationID,
		TriggerType:    event.TriggerType,
		ContactID:      event.ContactID,
		Data:           event.TriggerData,
	}
}

// Dispatcher fans one trigger event out to every matching active rule.
type Dispatcher struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	logger      *slog.Logger
}

// NewDispatcher creates a trigger dispatcher.
func NewDispatcher(p persistence.Persistence, eng *engine.Engine, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		persistence: p,
		engine:      eng,
		logger:      logger.With("module", "trigger_dispatcher"),
	}
}

// Dispatch starts an automation for every active rule matching the event's
// trigger type. A failure on one rule does not stop the fan-out; duplicate
// deliveries are absorbed by the engine's idempotency contract.
func (d *Dispatcher) Dispatch(ctx context.Context, event TriggerEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid trigger event: %w", err)
	}

	rules, err := d.persistence.RuleRepository().ListActiveByTrigger(
		ctx, event.OrganizationID, models.TriggerType(event.TriggerType))
	if err != nil {
		return fmt.Errorf("failed to match rules: %w", err)
	}

	if len(rules) == 0 {
		d.logger.DebugContext(ctx, "no active rules for trigger",
			"organization_id", event.OrganizationID,
			"trigger_type", event.TriggerType,
		)

		return nil
	}

	var firstErr error

	for _, rule := range rules {
		_, err := d.engine.StartAutomation(ctx, rule, event.ContactID, event.Data)
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to start automation for trigger",
				"rule_id", rule.ID,
				"contact_id", event.ContactID,
				"error", err,
			)

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
