package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dripflow/dripflow/pkg/models"
)

// NotificationRepository handles in-app notification storage.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification row.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, organization_id, kind, message, created_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		notification.ID,
		notification.OrganizationID,
		notification.Kind,
		notification.Message,
		notification.CreatedAt,
		notification.ReadAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}
