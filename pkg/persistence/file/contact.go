package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

const contactsDir = "contacts"

// ContactRepository stores contacts as one JSON file per contact.
type ContactRepository struct {
	root string
}

// NewContactRepository creates a new file-based contact repository.
func NewContactRepository(root string) *ContactRepository {
	return &ContactRepository{root: root}
}

// Save writes the contact to its file.
func (cr *ContactRepository) Save(_ context.Context, contact *models.Contact) error {
	if err := validateID(contact.ID); err != nil {
		return fmt.Errorf("invalid contact ID: %w", err)
	}

	_, err := ensureDir(cr.root, contactsDir)
	if err != nil {
		return fmt.Errorf("failed to create contacts directory: %w", err)
	}

	data, err := json.Marshal(contact)
	if err != nil {
		return fmt.Errorf("failed to marshal contact %s: %w", contact.ID, err)
	}

	err = os.WriteFile(entityPath(cr.root, contactsDir, contact.ID), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write contact %s: %w", contact.ID, err)
	}

	return nil
}

// GetByID reads one contact, verifying it belongs to the organization.
func (cr *ContactRepository) GetByID(_ context.Context, organizationID, contactID string) (*models.Contact, error) {
	if err := validateID(contactID); err != nil {
		return nil, fmt.Errorf("invalid contact ID: %w", err)
	}

	data, err := os.ReadFile(entityPath(cr.root, contactsDir, contactID)) // #nosec G304 -- ID is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrContactNotFound
		}

		return nil, fmt.Errorf("failed to read contact %s: %w", contactID, err)
	}

	var contact models.Contact

	err = json.Unmarshal(data, &contact)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal contact %s: %w", contactID, err)
	}

	if contact.OrganizationID != organizationID {
		return nil, persistence.ErrContactNotFound
	}

	return &contact, nil
}
