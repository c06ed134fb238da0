package services

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripflow/dripflow/pkg/flow"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence/file"
)

func newRulesService(t *testing.T) *Rules {
	t.Helper()

	logger := slog.Default()

	service, err := NewRules(
		file.NewPersistence(t.TempDir()),
		flow.NewParser(logger),
		validator.New(),
		logger,
	)
	require.NoError(t, err)

	return service
}

const welcomeFlow = `{
	"nodes": {
		"node-1": {"type": "TRIGGER", "data": {"trigger": "contact_created"}},
		"node-2": {"type": "SEND_EMAIL", "data": {"subject": "Welcome!", "content": "Hi {{contactFirstName}}"}},
		"node-3": {"type": "ADD_TAG", "data": {"tag": "onboarded"}}
	}
}`

func TestCreateRule_ParsesFlowIntoSteps(t *testing.T) {
	service := newRulesService(t)

	rule, err := service.CreateRule(t.Context(), SaveRuleRequest{
		OrganizationID: "org-1",
		Name:           "Welcome series",
		TriggerType:    "contact_created",
		Active:         true,
		FlowDefinition: json.RawMessage(welcomeFlow),
	})
	require.NoError(t, err)
	require.NotNil(t, rule)

	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, models.TriggerContactCreated, rule.TriggerType)

	// Trigger node excluded, remaining nodes in lexicographic node-id order.
	require.Len(t, rule.Steps, 2)
	assert.Equal(t, models.StepTypeSendEmail, rule.Steps[0].Type)
	assert.Equal(t, models.StepTypeAddTag, rule.Steps[1].Type)

	loaded, err := service.GetRule(t.Context(), "org-1", rule.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Steps, 2)
}

func TestCreateRule_RejectsUnknownTriggerType(t *testing.T) {
	service := newRulesService(t)

	_, err := service.CreateRule(t.Context(), SaveRuleRequest{
		OrganizationID: "org-1",
		Name:           "Broken",
		TriggerType:    "moon_phase_changed",
		FlowDefinition: json.RawMessage(welcomeFlow),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTriggerType)
	assert.True(t, IsValidationError(err))
}

func TestCreateRule_RejectsSchemaViolations(t *testing.T) {
	service := newRulesService(t)

	// Node without a type fails the flow schema.
	_, err := service.CreateRule(t.Context(), SaveRuleRequest{
		OrganizationID: "org-1",
		Name:           "Broken",
		TriggerType:    "tag_added",
		FlowDefinition: json.RawMessage(`{"nodes": {"node-1": {"data": {}}}}`),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFlow)
}

func TestCreateRule_RejectsMalformedJSON(t *testing.T) {
	service := newRulesService(t)

	_, err := service.CreateRule(t.Context(), SaveRuleRequest{
		OrganizationID: "org-1",
		Name:           "Broken",
		TriggerType:    "tag_added",
		FlowDefinition: json.RawMessage(`{not json`),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFlow)
}

func TestSetActive_Toggles(t *testing.T) {
	service := newRulesService(t)

	rule, err := service.CreateRule(t.Context(), SaveRuleRequest{
		OrganizationID: "org-1",
		Name:           "Welcome series",
		TriggerType:    "contact_created",
		Active:         false,
		FlowDefinition: json.RawMessage(welcomeFlow),
	})
	require.NoError(t, err)

	updated, err := service.SetActive(t.Context(), "org-1", rule.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Active)

	loaded, err := service.GetRule(t.Context(), "org-1", rule.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Active)
}

func TestUpdateRule_ReplacesSteps(t *testing.T) {
	service := newRulesService(t)

	rule, err := service.CreateRule(t.Context(), SaveRuleRequest{
		OrganizationID: "org-1",
		Name:           "Welcome series",
		TriggerType:    "contact_created",
		FlowDefinition: json.RawMessage(welcomeFlow),
	})
	require.NoError(t, err)

	updated, err := service.UpdateRule(t.Context(), rule.ID, SaveRuleRequest{
		OrganizationID: "org-1",
		Name:           "Welcome series v2",
		TriggerType:    "contact_created",
		FlowDefinition: json.RawMessage(`{
			"nodes": {
				"node-1": {"type": "WAIT", "data": {"delay": 1, "unit": "DAYS"}}
			}
		}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "Welcome series v2", updated.Name)
	require.Len(t, updated.Steps, 1)
	assert.Equal(t, models.StepTypeWait, updated.Steps[0].Type)
}
