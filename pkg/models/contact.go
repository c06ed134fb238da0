package models

import (
	"strings"
	"time"
)

// Contact is the marketing contact an automation runs for. Only the fields
// the engine touches are modeled here; the wider CRUD surface owns the rest.
type Contact struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id" validate:"required"`
	Email          string    `json:"email"           validate:"required,email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Tags           []string  `json:"tags,omitempty"`
	LeadScore      int       `json:"lead_score"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasTag reports whether the contact carries the tag (case-insensitive).
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}

	return false
}

// AddTag adds a tag to the contact. It reports whether the tag set changed.
func (c *Contact) AddTag(tag string) bool {
	if c.HasTag(tag) {
		return false
	}

	c.Tags = append(c.Tags, tag)

	return true
}

// RemoveTag removes a tag from the contact. It reports whether the tag set
// changed.
func (c *Contact) RemoveTag(tag string) bool {
	for i, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			c.Tags = append(c.Tags[:i], c.Tags[i+1:]...)

			return true
		}
	}

	return false
}

// AddLeadScore increments the contact's lead score by the given points.
func (c *Contact) AddLeadScore(points int) {
	c.LeadScore += points
}
