package flow

import (
	"log/slog"
	"testing"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParser() *Parser {
	return NewParser(slog.Default())
}

func parseRule() *models.AutomationRule {
	return &models.AutomationRule{ID: "rule-1", OrganizationID: "org-1"}
}

func TestParse_ExcludesTriggerNodes(t *testing.T) {
	raw := []byte(`{
		"nodes": {
			"n1": {"type": "TRIGGER", "data": {"trigger_type": "tag_added"}},
			"n2": {"type": "send_email", "data": {"subject": "Hello", "content": "Hi there"}},
			"n3": {"type": "add_tag", "data": {"tag": "welcomed"}},
			"n4": {"type": "wait", "data": {"delay": 5, "unit": "MINUTES"}}
		}
	}`)

	steps, err := testParser().Parse(raw, parseRule())
	require.NoError(t, err)
	require.Len(t, steps, 3)

	for _, step := range steps {
		assert.NotEqual(t, models.StepTypeTrigger, step.Type)
	}
}

func TestParse_AssignsPositionsByNodeID(t *testing.T) {
	raw := []byte(`{
		"nodes": {
			"c": {"type": "add_tag", "data": {"tag": "last"}},
			"a": {"type": "send_email", "data": {"subject": "first"}},
			"b": {"type": "wait", "data": {"delay": 1}}
		}
	}`)

	steps, err := testParser().Parse(raw, parseRule())
	require.NoError(t, err)
	require.Len(t, steps, 3)

	assert.Equal(t, "a", steps[0].ID)
	assert.Equal(t, "b", steps[1].ID)
	assert.Equal(t, "c", steps[2].ID)

	for i, step := range steps {
		assert.Equal(t, i, step.Position)
		assert.Equal(t, "rule-1", step.RuleID)
	}
}

func TestParse_StrategyExtractsRelevantFields(t *testing.T) {
	raw := []byte(`{
		"nodes": {
			"n1": {
				"type": "send_email",
				"data": {"subject": "Hello", "content": "Hi", "irrelevant": "dropped"},
				"position": {"x": 100, "y": 200}
			}
		}
	}`)

	steps, err := testParser().Parse(raw, parseRule())
	require.NoError(t, err)
	require.Len(t, steps, 1)

	step := steps[0]
	assert.Equal(t, models.StepTypeSendEmail, step.Type)
	assert.Equal(t, "Hello", step.Settings["subject"])
	assert.Equal(t, "Hi", step.Settings["content"])
	assert.NotContains(t, step.Settings, "irrelevant")

	// Visual metadata is carried but not part of the settings.
	assert.Equal(t, float64(100), step.Meta["x"])
}

func TestParse_DefaultStrategyCopiesPayloadVerbatim(t *testing.T) {
	raw := []byte(`{
		"nodes": {
			"n1": {
				"type": "custom_thing",
				"data": {
					"text": "hello",
					"count": 3,
					"ratio": 0.5,
					"flag": true,
					"nothing": null,
					"nested": {"a": 1},
					"list": [1, 2]
				}
			}
		}
	}`)

	steps, err := testParser().Parse(raw, parseRule())
	require.NoError(t, err)
	require.Len(t, steps, 1)

	settings := steps[0].Settings
	assert.Equal(t, "hello", settings["text"])
	assert.Equal(t, float64(3), settings["count"])
	assert.Equal(t, 0.5, settings["ratio"])
	assert.Equal(t, true, settings["flag"])
	assert.Contains(t, settings, "nothing")
	assert.Nil(t, settings["nothing"])
	assert.JSONEq(t, `{"a":1}`, settings["nested"].(string))
	assert.JSONEq(t, `[1,2]`, settings["list"].(string))
}

func TestParse_BrokenNodeDoesNotAbortParse(t *testing.T) {
	raw := []byte(`{
		"nodes": {
			"a": {"type": "wait", "data": {"delay": "not-a-number"}},
			"b": {"type": "add_tag", "data": {"tag": "kept"}}
		}
	}`)

	steps, err := testParser().Parse(raw, parseRule())
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "b", steps[0].ID)
}

func TestParse_MissingNodesDegradesToEmpty(t *testing.T) {
	for _, raw := range []string{`{}`, `{"edges": []}`, `{"nodes": {}}`} {
		steps, err := testParser().Parse([]byte(raw), parseRule())
		require.NoError(t, err, raw)
		assert.Empty(t, steps, raw)
	}
}

func TestParse_MalformedJSONIsHardFailure(t *testing.T) {
	_, err := testParser().Parse([]byte(`{"nodes": `), parseRule())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed flow definition")
}

func TestParse_StepTypeIsCaseInsensitive(t *testing.T) {
	raw := []byte(`{"nodes": {"n1": {"type": "SEND_EMAIL", "data": {"subject": "s"}}}}`)

	steps, err := testParser().Parse(raw, parseRule())
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepTypeSendEmail, steps[0].Type)
}
