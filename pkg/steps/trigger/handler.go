// Package trigger provides the no-op handler for trigger steps that reach
// the executable step list. The trigger describes when an automation
// starts, so executing one is always an immediate success.
package trigger

import (
	"context"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

type Handler struct {
	stepID string
}

func (h *Handler) Execute(_ context.Context, _ *models.AutomationExecution) (*protocol.StepOutcome, error) {
	return &protocol.StepOutcome{
		Output: map[string]any{"trigger": true},
	}, nil
}

type Factory struct{}

func (f *Factory) Create(_ context.Context, stepID string, _ map[string]any) (protocol.StepHandler, error) {
	return &Handler{stepID: stepID}, nil
}

func (f *Factory) ID() string {
	return string(models.StepTypeTrigger)
}

// NewFactory creates the trigger handler factory.
func NewFactory() protocol.StepHandlerFactory {
	return &Factory{}
}
