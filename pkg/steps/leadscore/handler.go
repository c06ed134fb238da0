// Package leadscore provides the step handler that increments a contact's
// lead score.
package leadscore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

type Handler struct {
	stepID   string
	points   int
	contacts protocol.ContactStore
}

func newHandler(stepID string, settings map[string]any, contacts protocol.ContactStore) (*Handler, error) {
	points, err := parsePoints(settings["points"])
	if err != nil {
		return nil, err
	}

	return &Handler{stepID: stepID, points: points, contacts: contacts}, nil
}

func (h *Handler) Execute(ctx context.Context, execution *models.AutomationExecution) (*protocol.StepOutcome, error) {
	err := h.contacts.AddLeadScore(ctx, execution.OrganizationID, execution.ContactID, h.points)
	if err != nil {
		return nil, fmt.Errorf("failed to update lead score for contact %s: %w", execution.ContactID, err)
	}

	return &protocol.StepOutcome{
		Output: map[string]any{"points": h.points},
	}, nil
}

func parsePoints(raw any) (int, error) {
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		points, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("lead score points %q is not an integer", v)
		}

		return points, nil
	case nil:
		return 0, errors.New("lead score step requires integer points")
	default:
		return 0, fmt.Errorf("lead score points has unsupported type %T", raw)
	}
}

type Factory struct {
	contacts protocol.ContactStore
}

func (f *Factory) Create(_ context.Context, stepID string, settings map[string]any) (protocol.StepHandler, error) {
	return newHandler(stepID, settings, f.contacts)
}

func (f *Factory) ID() string {
	return string(models.StepTypeUpdateLeadScore)
}

// NewFactory creates the lead-score handler factory.
func NewFactory(contacts protocol.ContactStore) protocol.StepHandlerFactory {
	return &Factory{contacts: contacts}
}
