package leadscore

import (
	"context"
	"testing"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContacts struct {
	points int
}

func (f *fakeContacts) GetContact(_ context.Context, _, _ string) (*models.Contact, error) {
	return nil, nil
}

func (f *fakeContacts) AddTag(_ context.Context, _, _, _ string) error { return nil }

func (f *fakeContacts) RemoveTag(_ context.Context, _, _, _ string) error { return nil }

func (f *fakeContacts) AddLeadScore(_ context.Context, _, _ string, points int) error {
	f.points += points

	return nil
}

func TestExecute_IncrementsLeadScore(t *testing.T) {
	contacts := &fakeContacts{}
	factory := NewFactory(contacts)

	handler, err := factory.Create(t.Context(), "step-1", map[string]any{"points": float64(15)})
	require.NoError(t, err)

	execution := &models.AutomationExecution{OrganizationID: "org-1", ContactID: "contact-1"}
	outcome, err := handler.Execute(t.Context(), execution)
	require.NoError(t, err)

	assert.Equal(t, 15, contacts.points)
	assert.Equal(t, 15, outcome.Output["points"])
}

func TestCreate_RequiresIntegerPoints(t *testing.T) {
	factory := NewFactory(&fakeContacts{})

	_, err := factory.Create(t.Context(), "step-1", map[string]any{})
	require.Error(t, err)

	_, err = factory.Create(t.Context(), "step-1", map[string]any{"points": "many"})
	require.Error(t, err)
}

func TestCreate_NegativePointsAllowed(t *testing.T) {
	contacts := &fakeContacts{}
	factory := NewFactory(contacts)

	handler, err := factory.Create(t.Context(), "step-1", map[string]any{"points": float64(-5)})
	require.NoError(t, err)

	_, err = handler.Execute(t.Context(), &models.AutomationExecution{})
	require.NoError(t, err)
	assert.Equal(t, -5, contacts.points)
}
