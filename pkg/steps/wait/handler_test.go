package wait

import (
	"testing"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_SchedulesDelayFromNow(t *testing.T) {
	handler, err := newHandler("step-1", map[string]any{"delay": float64(5), "unit": "MINUTES"})
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return now }

	outcome, err := handler.Execute(t.Context(), &models.AutomationExecution{})
	require.NoError(t, err)

	require.NotNil(t, outcome.ScheduledFor)
	assert.Equal(t, now.Add(5*time.Minute), *outcome.ScheduledFor)
}

func TestExecute_UnitVariants(t *testing.T) {
	tests := []struct {
		name string
		unit any
		want time.Duration
	}{
		{"default is minutes", nil, 2 * time.Minute},
		{"hours", "HOURS", 2 * time.Hour},
		{"days", "days", 48 * time.Hour},
		{"lowercase minutes", "minutes", 2 * time.Minute},
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := map[string]any{"delay": float64(2)}
			if tt.unit != nil {
				settings["unit"] = tt.unit
			}

			handler, err := newHandler("step-1", settings)
			require.NoError(t, err)
			handler.now = func() time.Time { return now }

			outcome, err := handler.Execute(t.Context(), &models.AutomationExecution{})
			require.NoError(t, err)
			assert.Equal(t, now.Add(tt.want), *outcome.ScheduledFor)
		})
	}
}

func TestNewHandler_InvalidSettings(t *testing.T) {
	_, err := newHandler("step-1", map[string]any{})
	require.Error(t, err)

	_, err = newHandler("step-1", map[string]any{"delay": "soon"})
	require.Error(t, err)

	_, err = newHandler("step-1", map[string]any{"delay": float64(1), "unit": "FORTNIGHTS"})
	require.Error(t, err)
}

func TestNewHandler_NumericStringDelay(t *testing.T) {
	handler, err := newHandler("step-1", map[string]any{"delay": "15"})
	require.NoError(t, err)
	assert.Equal(t, 15, handler.delay)
}
