// Package wait provides the step handler that suspends an execution until
// a computed future time. Suspension is durable state, not an in-memory
// timer, so the process can restart between suspension and resumption.
package wait

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

// Handler computes scheduledFor = now + delay(unit) and suspends.
type Handler struct {
	stepID string
	delay  int
	unit   time.Duration
	now    func() time.Time
}

func newHandler(stepID string, settings map[string]any) (*Handler, error) {
	delay, err := parseDelay(settings["delay"])
	if err != nil {
		return nil, err
	}

	unit, err := parseUnit(settings["unit"])
	if err != nil {
		return nil, err
	}

	return &Handler{
		stepID: stepID,
		delay:  delay,
		unit:   unit,
		now:    time.Now,
	}, nil
}

func (h *Handler) Execute(_ context.Context, _ *models.AutomationExecution) (*protocol.StepOutcome, error) {
	at := h.now().UTC().Add(time.Duration(h.delay) * h.unit)

	return &protocol.StepOutcome{
		ScheduledFor: &at,
		Output: map[string]any{
			"scheduledFor": at.Format(time.RFC3339),
		},
	}, nil
}

func parseDelay(raw any) (int, error) {
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		delay, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("wait step delay %q is not an integer", v)
		}

		return delay, nil
	case nil:
		return 0, errors.New("wait step requires a delay")
	default:
		return 0, fmt.Errorf("wait step delay has unsupported type %T", raw)
	}
}

// parseUnit resolves the delay unit, defaulting to minutes when absent.
func parseUnit(raw any) (time.Duration, error) {
	unit, _ := raw.(string)

	switch strings.ToUpper(strings.TrimSpace(unit)) {
	case "", "MINUTES":
		return time.Minute, nil
	case "HOURS":
		return time.Hour, nil
	case "DAYS":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("wait step unit %q is not one of MINUTES, HOURS, DAYS", unit)
	}
}

type Factory struct{}

func (f *Factory) Create(_ context.Context, stepID string, settings map[string]any) (protocol.StepHandler, error) {
	return newHandler(stepID, settings)
}

func (f *Factory) ID() string {
	return string(models.StepTypeWait)
}

// NewFactory creates the wait handler factory.
func NewFactory() protocol.StepHandlerFactory {
	return &Factory{}
}
