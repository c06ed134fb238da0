package tag

import (
	"context"
	"testing"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContacts struct {
	added   []string
	removed []string
}

func (f *fakeContacts) GetContact(_ context.Context, _, _ string) (*models.Contact, error) {
	return nil, nil
}

func (f *fakeContacts) AddTag(_ context.Context, _, _, tag string) error {
	f.added = append(f.added, tag)

	return nil
}

func (f *fakeContacts) RemoveTag(_ context.Context, _, _, tag string) error {
	f.removed = append(f.removed, tag)

	return nil
}

func (f *fakeContacts) AddLeadScore(_ context.Context, _, _ string, _ int) error {
	return nil
}

func execution() *models.AutomationExecution {
	return &models.AutomationExecution{
		OrganizationID: "org-1",
		ContactID:      "contact-1",
		Status:         models.ExecutionStatusRunning,
	}
}

func TestAddTag(t *testing.T) {
	contacts := &fakeContacts{}
	factory := NewAddFactory(contacts)

	handler, err := factory.Create(t.Context(), "step-1", map[string]any{"tag": "vip"})
	require.NoError(t, err)

	outcome, err := handler.Execute(t.Context(), execution())
	require.NoError(t, err)

	assert.Equal(t, []string{"vip"}, contacts.added)
	assert.Equal(t, "vip", outcome.Output["tag"])
	assert.Equal(t, false, outcome.Output["removed"])
}

func TestRemoveTag(t *testing.T) {
	contacts := &fakeContacts{}
	factory := NewRemoveFactory(contacts)

	handler, err := factory.Create(t.Context(), "step-1", map[string]any{"tag": "churned"})
	require.NoError(t, err)

	outcome, err := handler.Execute(t.Context(), execution())
	require.NoError(t, err)

	assert.Equal(t, []string{"churned"}, contacts.removed)
	assert.Equal(t, true, outcome.Output["removed"])
}

func TestBlankTagIsRejected(t *testing.T) {
	factory := NewAddFactory(&fakeContacts{})

	for _, settings := range []map[string]any{
		{},
		{"tag": ""},
		{"tag": "   "},
		{"tag": 42},
	} {
		_, err := factory.Create(t.Context(), "step-1", settings)
		require.Error(t, err)
	}
}

func TestTagNameIsTrimmed(t *testing.T) {
	contacts := &fakeContacts{}
	factory := NewAddFactory(contacts)

	handler, err := factory.Create(t.Context(), "step-1", map[string]any{"tag": "  vip  "})
	require.NoError(t, err)

	_, err = handler.Execute(t.Context(), execution())
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, contacts.added)
}
