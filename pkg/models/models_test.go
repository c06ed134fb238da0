package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRule() *AutomationRule {
	return &AutomationRule{
		ID:             "rule-1",
		OrganizationID: "org-1",
		Name:           "Welcome series",
		TriggerType:    TriggerTagAdded,
		Active:         true,
	}
}

func testContact() *Contact {
	return &Contact{
		ID:             "contact-1",
		OrganizationID: "org-1",
		Email:          "ann@example.com",
		FirstName:      "Ann",
		LastName:       "Kowalska",
	}
}

func TestNewExecution_SeedsContext(t *testing.T) {
	exec := NewExecution(testRule(), testContact(), map[string]any{"tag": "vip"})

	assert.Equal(t, ExecutionStatusRunning, exec.Status)
	assert.Equal(t, "vip", exec.Context["tag"])
	assert.Equal(t, "contact-1", exec.Context["contactId"])
	assert.Equal(t, "ann@example.com", exec.Context["contactEmail"])
	assert.Equal(t, "Ann", exec.Context["contactFirstName"])
	assert.Equal(t, "Kowalska", exec.Context["contactLastName"])
	assert.True(t, exec.IsActive())
}

func TestExecution_WaitResumeComplete(t *testing.T) {
	exec := NewExecution(testRule(), testContact(), nil)

	require.NoError(t, exec.MarkWaiting())
	assert.Equal(t, ExecutionStatusWaiting, exec.Status)
	assert.True(t, exec.IsActive())

	// Waiting executions cannot wait again.
	assert.Error(t, exec.MarkWaiting())

	require.NoError(t, exec.Resume())
	assert.Equal(t, ExecutionStatusRunning, exec.Status)

	require.NoError(t, exec.Complete())
	assert.Equal(t, ExecutionStatusCompleted, exec.Status)
	assert.NotNil(t, exec.CompletedAt)
	assert.False(t, exec.IsActive())
}

func TestExecution_TerminalStatesAreFinal(t *testing.T) {
	exec := NewExecution(testRule(), testContact(), nil)
	require.NoError(t, exec.Fail("boom"))

	assert.Equal(t, ExecutionStatusFailed, exec.Status)
	assert.Equal(t, "boom", exec.ErrorMessage)
	assert.Error(t, exec.Complete())
	assert.Error(t, exec.Cancel())
	assert.Error(t, exec.Resume())
}

func TestStepExecution_Lifecycle(t *testing.T) {
	step := &AutomationStep{ID: "node-1", RuleID: "rule-1", Type: StepTypeSendEmail, Settings: map[string]any{"subject": "Hi"}}
	se := NewStepExecution("exec-1", step, 0)

	assert.Equal(t, StepStatusPending, se.Status)
	assert.Equal(t, "Hi", se.InputData["subject"])

	require.NoError(t, se.Start())
	assert.Equal(t, StepStatusRunning, se.Status)
	assert.NotNil(t, se.StartedAt)

	require.NoError(t, se.Complete(map[string]any{"emailSent": true}))
	assert.Equal(t, StepStatusCompleted, se.Status)
	assert.True(t, se.IsTerminal())
	assert.Error(t, se.Start())
}

func TestStepExecution_FailedRetriesUntilCeiling(t *testing.T) {
	step := &AutomationStep{ID: "node-1", RuleID: "rule-1", Type: StepTypeAddTag}
	se := NewStepExecution("exec-1", step, 0)

	for attempt := 1; attempt <= MaxStepAttempts; attempt++ {
		require.NoError(t, se.Start())
		se.RetryCount++
		require.NoError(t, se.Fail("attempt failed"))

		if attempt < MaxStepAttempts {
			assert.True(t, se.CanRetry())
			assert.False(t, se.IsTerminal())
		}
	}

	assert.Equal(t, MaxStepAttempts, se.RetryCount)
	assert.False(t, se.CanRetry())
	assert.True(t, se.IsTerminal())
	assert.NotNil(t, se.CompletedAt)
}

func TestStepExecution_ScheduleResolvesToCompleted(t *testing.T) {
	step := &AutomationStep{ID: "node-1", RuleID: "rule-1", Type: StepTypeWait}
	se := NewStepExecution("exec-1", step, 0)

	require.NoError(t, se.Start())

	at := time.Now().Add(5 * time.Minute)
	require.NoError(t, se.Schedule(at))
	assert.Equal(t, StepStatusScheduled, se.Status)
	require.NotNil(t, se.ScheduledFor)
	assert.False(t, se.IsTerminal())

	require.NoError(t, se.Complete(map[string]any{"waited": true}))
	assert.Equal(t, StepStatusCompleted, se.Status)
}

func TestContact_TagMutations(t *testing.T) {
	contact := testContact()

	assert.True(t, contact.AddTag("VIP"))
	assert.False(t, contact.AddTag("vip"), "tag comparison is case-insensitive")
	assert.True(t, contact.HasTag("Vip"))

	assert.True(t, contact.RemoveTag("vip"))
	assert.False(t, contact.RemoveTag("vip"))
	assert.Empty(t, contact.Tags)
}

func TestCondition_Evaluate(t *testing.T) {
	context := map[string]any{
		"leadScore":        float64(42),
		"contactFirstName": "Ann",
		"plan":             "pro-annual",
	}

	tests := []struct {
		name      string
		condition Condition
		want      bool
		wantErr   bool
	}{
		{"empty condition is true", Condition{}, true, false},
		{"equals string", Condition{Field: "contactFirstName", Operator: OperatorEquals, Value: "Ann"}, true, false},
		{"equals numeric cross-type", Condition{Field: "leadScore", Operator: OperatorEquals, Value: "42"}, true, false},
		{"not equals", Condition{Field: "contactFirstName", Operator: OperatorNotEquals, Value: "Bea"}, true, false},
		{"contains", Condition{Field: "plan", Operator: OperatorContains, Value: "annual"}, true, false},
		{"not contains", Condition{Field: "plan", Operator: OperatorNotContains, Value: "trial"}, true, false},
		{"greater than", Condition{Field: "leadScore", Operator: OperatorGreaterThan, Value: 40}, true, false},
		{"less than false", Condition{Field: "leadScore", Operator: OperatorLessThan, Value: 40}, false, false},
		{"exists", Condition{Field: "plan", Operator: OperatorExists}, true, false},
		{"not exists on missing field", Condition{Field: "missing", Operator: OperatorNotExists}, true, false},
		{"ordered comparison needs numbers", Condition{Field: "contactFirstName", Operator: OperatorGreaterThan, Value: 1}, false, true},
		{"unsupported operator", Condition{Field: "plan", Operator: "matches"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.condition.Evaluate(context)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
