// Package tag provides the add-tag and remove-tag step handlers that
// mutate the contact's tag set through the contact store.
package tag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/protocol"
)

type Handler struct {
	stepID   string
	tag      string
	remove   bool
	contacts protocol.ContactStore
}

func newHandler(stepID string, settings map[string]any, remove bool, contacts protocol.ContactStore) (*Handler, error) {
	tagName, _ := settings["tag"].(string)
	if strings.TrimSpace(tagName) == "" {
		return nil, errors.New("tag step requires a non-blank tag name")
	}

	return &Handler{
		stepID:   stepID,
		tag:      strings.TrimSpace(tagName),
		remove:   remove,
		contacts: contacts,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, execution *models.AutomationExecution) (*protocol.StepOutcome, error) {
	var err error
	if h.remove {
		err = h.contacts.RemoveTag(ctx, execution.OrganizationID, execution.ContactID, h.tag)
	} else {
		err = h.contacts.AddTag(ctx, execution.OrganizationID, execution.ContactID, h.tag)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to update tag %q on contact %s: %w", h.tag, execution.ContactID, err)
	}

	return &protocol.StepOutcome{
		Output: map[string]any{
			"tag":     h.tag,
			"removed": h.remove,
		},
	}, nil
}

type Factory struct {
	stepType models.StepType
	remove   bool
	contacts protocol.ContactStore
}

func (f *Factory) Create(_ context.Context, stepID string, settings map[string]any) (protocol.StepHandler, error) {
	return newHandler(stepID, settings, f.remove, f.contacts)
}

func (f *Factory) ID() string {
	return string(f.stepType)
}

// NewAddFactory creates the add-tag handler factory.
func NewAddFactory(contacts protocol.ContactStore) protocol.StepHandlerFactory {
	return &Factory{stepType: models.StepTypeAddTag, contacts: contacts}
}

// NewRemoveFactory creates the remove-tag handler factory.
func NewRemoveFactory(contacts protocol.ContactStore) protocol.StepHandlerFactory {
	return &Factory{stepType: models.StepTypeRemoveTag, remove: true, contacts: contacts}
}
