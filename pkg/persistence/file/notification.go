package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dripflow/dripflow/pkg/models"
)

const notificationsDir = "notifications"

// NotificationRepository stores in-app notifications as one JSON file per
// notification.
type NotificationRepository struct {
	root string
}

// NewNotificationRepository creates a new file-based notification
// repository.
func NewNotificationRepository(root string) *NotificationRepository {
	return &NotificationRepository{root: root}
}

// Create writes the notification to its file.
func (nr *NotificationRepository) Create(_ context.Context, notification *models.Notification) error {
	if err := validateID(notification.ID); err != nil {
		return fmt.Errorf("invalid notification ID: %w", err)
	}

	_, err := ensureDir(nr.root, notificationsDir)
	if err != nil {
		return fmt.Errorf("failed to create notifications directory: %w", err)
	}

	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification %s: %w", notification.ID, err)
	}

	err = os.WriteFile(entityPath(nr.root, notificationsDir, notification.ID), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write notification %s: %w", notification.ID, err)
	}

	return nil
}
