// Package contacts implements the contact-management collaborator on top of
// the persistence layer.
package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
	"github.com/dripflow/dripflow/pkg/protocol"
)

// Store mutates contacts through the contact repository. It satisfies
// protocol.ContactStore.
type Store struct {
	repo   persistence.ContactRepository
	logger *slog.Logger
}

// NewStore creates a contact store backed by the given repository.
func NewStore(repo persistence.ContactRepository, logger *slog.Logger) *Store {
	return &Store{repo: repo, logger: logger}
}

// GetContact retrieves a contact scoped to one organization.
func (s *Store) GetContact(ctx context.Context, organizationID, contactID string) (*models.Contact, error) {
	contact, err := s.repo.GetByID(ctx, organizationID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return contact, nil
}

// AddTag adds a tag to a contact. Adding an already present tag is a no-op.
func (s *Store) AddTag(ctx context.Context, organizationID, contactID, tag string) error {
	return s.mutate(ctx, organizationID, contactID, func(contact *models.Contact) bool {
		return contact.AddTag(tag)
	})
}

// RemoveTag removes a tag from a contact. Removing an absent tag is a no-op.
func (s *Store) RemoveTag(ctx context.Context, organizationID, contactID, tag string) error {
	return s.mutate(ctx, organizationID, contactID, func(contact *models.Contact) bool {
		return contact.RemoveTag(tag)
	})
}

// AddLeadScore adjusts the contact's lead score by the given points.
func (s *Store) AddLeadScore(ctx context.Context, organizationID, contactID string, points int) error {
	if points == 0 {
		return nil
	}

	return s.mutate(ctx, organizationID, contactID, func(contact *models.Contact) bool {
		contact.AddLeadScore(points)

		return true
	})
}

func (s *Store) mutate(ctx context.Context, organizationID, contactID string, apply func(*models.Contact) bool) error {
	contact, err := s.repo.GetByID(ctx, organizationID, contactID)
	if err != nil {
		return fmt.Errorf("failed to get contact: %w", err)
	}

	if !apply(contact) {
		return nil
	}

	contact.UpdatedAt = time.Now().UTC()

	err = s.repo.Save(ctx, contact)
	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}

	return nil
}

var _ protocol.ContactStore = (*Store)(nil)
