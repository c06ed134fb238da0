package models

import "strings"

// StepType identifies the kind of work one parsed flow node performs.
type StepType string

const (
	StepTypeTrigger         StepType = "trigger"
	StepTypeSendEmail       StepType = "send_email"
	StepTypeAddTag          StepType = "add_tag"
	StepTypeRemoveTag       StepType = "remove_tag"
	StepTypeWait            StepType = "wait"
	StepTypeUpdateLeadScore StepType = "update_lead_score"
	StepTypeCondition       StepType = "condition"
	StepTypeUpdateField     StepType = "update_field"
	StepTypeWebhook         StepType = "webhook"
	StepTypeAddToGroup      StepType = "add_to_group"
	StepTypeRemoveFromGroup StepType = "remove_from_group"
)

// NormalizeStepType lowercases a raw node type so dispatch is
// case-insensitive everywhere.
func NormalizeStepType(raw string) StepType {
	return StepType(strings.ToLower(strings.TrimSpace(raw)))
}

// AutomationStep is one executable node of the parsed flow, materialized for
// fast sequential access. Its ID matches the node id in the flow graph.
// Visual metadata from the authoring canvas is carried along but ignored by
// the engine.
type AutomationStep struct {
	ID       string         `json:"id"       validate:"required"`
	RuleID   string         `json:"rule_id"  validate:"required"`
	Type     StepType       `json:"type"     validate:"required"`
	Position int            `json:"position"`
	Settings map[string]any `json:"settings"`
	Meta     map[string]any `json:"meta,omitempty"`
}
