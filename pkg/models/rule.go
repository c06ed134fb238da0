// Package models defines the core domain models for contact automation rules
// and their durable executions.
package models

import (
	"encoding/json"
	"time"
)

// TriggerType identifies the contact event that starts an automation.
type TriggerType string

const (
	TriggerTagAdded       TriggerType = "tag_added"
	TriggerTagRemoved     TriggerType = "tag_removed"
	TriggerListJoined     TriggerType = "list_joined"
	TriggerListLeft       TriggerType = "list_left"
	TriggerEmailOpened    TriggerType = "email_opened"
	TriggerEmailClicked   TriggerType = "email_clicked"
	TriggerContactCreated TriggerType = "contact_created"
)

// AutomationRule is a user-authored automation: a trigger plus a flow graph.
// The raw flow definition is kept as authored; the parsed, ordered steps are
// materialized once at save time and never re-parsed during execution.
type AutomationRule struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id" validate:"required"`
	Name           string            `json:"name"            validate:"required,min=3"`
	TriggerType    TriggerType       `json:"trigger_type"    validate:"required"`
	Active         bool              `json:"active"`
	FlowDefinition json.RawMessage   `json:"flow_definition"`
	Steps          []*AutomationStep `json:"steps,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
