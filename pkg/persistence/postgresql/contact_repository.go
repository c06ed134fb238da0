package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

// ContactRepository handles contact storage.
type ContactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new contact repository.
func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Save upserts a contact.
func (r *ContactRepository) Save(ctx context.Context, contact *models.Contact) error {
	tags := contact.Tags
	if tags == nil {
		tags = []string{}
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal contact tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, organization_id, email, first_name, last_name, tags, lead_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			tags = EXCLUDED.tags,
			lead_score = EXCLUDED.lead_score,
			updated_at = EXCLUDED.updated_at
	`,
		contact.ID,
		contact.OrganizationID,
		contact.Email,
		contact.FirstName,
		contact.LastName,
		tagsJSON,
		contact.LeadScore,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}

	return nil
}

// GetByID retrieves a contact scoped to one organization.
func (r *ContactRepository) GetByID(ctx context.Context, organizationID, contactID string) (*models.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, email, first_name, last_name, tags, lead_score, created_at, updated_at
		FROM contacts
		WHERE id = $1 AND organization_id = $2
	`, contactID, organizationID)

	contact, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrContactNotFound
		}

		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}

	return contact, nil
}

// GetByEmail retrieves a contact by email scoped to one organization.
func (r *ContactRepository) GetByEmail(ctx context.Context, organizationID, email string) (*models.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, email, first_name, last_name, tags, lead_score, created_at, updated_at
		FROM contacts
		WHERE organization_id = $1 AND lower(email) = lower($2)
	`, organizationID, email)

	contact, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrContactNotFound
		}

		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}

	return contact, nil
}

func scanContact(scanner interface{ Scan(dest ...any) error }) (*models.Contact, error) {
	var (
		contact  models.Contact
		tagsJSON []byte
	)

	err := scanner.Scan(
		&contact.ID,
		&contact.OrganizationID,
		&contact.Email,
		&contact.FirstName,
		&contact.LastName,
		&tagsJSON,
		&contact.LeadScore,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tagsJSON != nil {
		err = json.Unmarshal(tagsJSON, &contact.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal contact tags: %w", err)
		}
	}

	return &contact, nil
}
