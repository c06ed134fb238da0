// Package registry holds the step handler factories the execution engine
// dispatches through, keyed by step type.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

// ErrHandlerNotRegistered marks a step type with no registered handler.
// The engine treats this as the unknown-step path (skip and advance), not
// as a step failure.
var ErrHandlerNotRegistered = errors.New("step type not registered")

type Registry struct {
	logger           *slog.Logger
	handlerFactories map[string]protocol.StepHandlerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:           logger,
		handlerFactories: make(map[string]protocol.StepHandlerFactory),
	}
}

// RegisterHandler adds or replaces the factory for one step type.
func (r *Registry) RegisterHandler(factory protocol.StepHandlerFactory) {
	r.handlerFactories[strings.ToLower(factory.ID())] = factory
}

// CreateHandler builds a handler for the given step. Dispatch is
// case-insensitive on the step type.
func (r *Registry) CreateHandler(ctx context.Context, stepType models.StepType, stepID string, settings map[string]any) (protocol.StepHandler, error) {
	factory, ok := r.handlerFactories[strings.ToLower(string(stepType))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotRegistered, stepType)
	}

	return factory.Create(ctx, stepID, settings)
}
