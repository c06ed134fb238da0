package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind classifies an in-app notification row.
type NotificationKind string

const (
	NotificationAutomationStarted   NotificationKind = "automation_started"
	NotificationAutomationCompleted NotificationKind = "automation_completed"
	NotificationAutomationFailed    NotificationKind = "automation_failed"
	NotificationAutomationCancelled NotificationKind = "automation_cancelled"
)

// Notification is a human-readable in-app notice. Delivery is best-effort
// and never blocks execution progress.
type Notification struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	Kind           NotificationKind `json:"kind"`
	Message        string           `json:"message"`
	CreatedAt      time.Time        `json:"created_at"`
	ReadAt         *time.Time       `json:"read_at,omitempty"`
}

// NewNotification creates an unread notification.
func NewNotification(organizationID string, kind NotificationKind, message string) *Notification {
	return &Notification{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		Kind:           kind,
		Message:        message,
		CreatedAt:      time.Now().UTC(),
	}
}
