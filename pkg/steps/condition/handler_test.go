package condition

import (
	"testing"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execution(context map[string]any) *models.AutomationExecution {
	return &models.AutomationExecution{
		Status:  models.ExecutionStatusRunning,
		Context: context,
	}
}

func TestExecute_TrueConditionAdvances(t *testing.T) {
	handler, err := NewFactory().Create(t.Context(), "step-1", map[string]any{
		"field":    "plan",
		"operator": "equals",
		"value":    "pro",
	})
	require.NoError(t, err)

	outcome, err := handler.Execute(t.Context(), execution(map[string]any{"plan": "pro"}))
	require.NoError(t, err)

	assert.Equal(t, true, outcome.Output["conditionResult"])
	assert.False(t, outcome.HaltRemaining)
}

func TestExecute_FalseConditionHaltsRemaining(t *testing.T) {
	handler, err := NewFactory().Create(t.Context(), "step-1", map[string]any{
		"field":    "leadScore",
		"operator": "greater_than",
		"value":    float64(100),
	})
	require.NoError(t, err)

	outcome, err := handler.Execute(t.Context(), execution(map[string]any{"leadScore": float64(10)}))
	require.NoError(t, err)

	assert.Equal(t, false, outcome.Output["conditionResult"])
	assert.True(t, outcome.HaltRemaining)
}

func TestExecute_EmptySettingsEvaluateTrue(t *testing.T) {
	handler, err := NewFactory().Create(t.Context(), "step-1", map[string]any{})
	require.NoError(t, err)

	outcome, err := handler.Execute(t.Context(), execution(nil))
	require.NoError(t, err)
	assert.Equal(t, true, outcome.Output["conditionResult"])
}

func TestExecute_EvaluationErrorEntersRetryPath(t *testing.T) {
	handler, err := NewFactory().Create(t.Context(), "step-1", map[string]any{
		"field":    "name",
		"operator": "matches",
	})
	require.NoError(t, err)

	_, err = handler.Execute(t.Context(), execution(map[string]any{"name": "Ann"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "condition evaluation failed")
}
