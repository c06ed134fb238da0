// Package condition provides the step handler that evaluates a field
// comparison against the execution context. A false result skips the
// remaining steps of the run and completes it; a linear step list has no
// alternate branch to follow.
package condition

import (
	"context"
	"fmt"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

type Handler struct {
	stepID    string
	condition models.Condition
}

func newHandler(stepID string, settings map[string]any) (*Handler, error) {
	field, _ := settings["field"].(string)
	operator, _ := settings["operator"].(string)

	return &Handler{
		stepID: stepID,
		condition: models.Condition{
			Field:    field,
			Operator: models.ConditionOperator(operator),
			Value:    settings["value"],
		},
	}, nil
}

func (h *Handler) Execute(_ context.Context, execution *models.AutomationExecution) (*protocol.StepOutcome, error) {
	result, err := h.condition.Evaluate(execution.Context)
	if err != nil {
		return nil, fmt.Errorf("condition evaluation failed: %w", err)
	}

	outcome := &protocol.StepOutcome{
		Output: map[string]any{
			"conditionResult": result,
			"field":           h.condition.Field,
		},
	}

	if !result {
		outcome.HaltRemaining = true
	}

	return outcome, nil
}

type Factory struct{}

func (f *Factory) Create(_ context.Context, stepID string, settings map[string]any) (protocol.StepHandler, error) {
	return newHandler(stepID, settings)
}

func (f *Factory) ID() string {
	return string(models.StepTypeCondition)
}

// NewFactory creates the condition handler factory.
func NewFactory() protocol.StepHandlerFactory {
	return &Factory{}
}
