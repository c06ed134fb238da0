package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

const rulesDir = "rules"

// RuleRepository stores automation rules, with their parsed steps embedded,
// as one JSON file per rule.
type RuleRepository struct {
	root string
}

// NewRuleRepository creates a new file-based rule repository.
func NewRuleRepository(root string) *RuleRepository {
	return &RuleRepository{root: root}
}

// Save writes the rule and its steps to a single file, which makes the
// replacement of steps naturally atomic.
func (rr *RuleRepository) Save(_ context.Context, rule *models.AutomationRule) error {
	if err := validateID(rule.ID); err != nil {
		return fmt.Errorf("invalid rule ID: %w", err)
	}

	_, err := ensureDir(rr.root, rulesDir)
	if err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule %s: %w", rule.ID, err)
	}

	err = os.WriteFile(entityPath(rr.root, rulesDir, rule.ID), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write rule %s: %w", rule.ID, err)
	}

	return nil
}

// GetByID reads one rule, verifying it belongs to the organization.
func (rr *RuleRepository) GetByID(_ context.Context, organizationID, ruleID string) (*models.AutomationRule, error) {
	rule, err := rr.load(ruleID)
	if err != nil {
		return nil, err
	}

	if rule.OrganizationID != organizationID {
		return nil, persistence.ErrRuleNotFound
	}

	return rule, nil
}

// List returns all rules of one organization, newest first.
func (rr *RuleRepository) List(ctx context.Context, organizationID string) ([]*models.AutomationRule, error) {
	all, err := rr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	rules := make([]*models.AutomationRule, 0)

	for _, rule := range all {
		if rule.OrganizationID == organizationID {
			rules = append(rules, rule)
		}
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].CreatedAt.After(rules[j].CreatedAt)
	})

	return rules, nil
}

// ListActiveByTrigger returns the organization's active rules for one
// trigger type.
func (rr *RuleRepository) ListActiveByTrigger(ctx context.Context, organizationID string, trigger models.TriggerType) ([]*models.AutomationRule, error) {
	all, err := rr.List(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	rules := make([]*models.AutomationRule, 0)

	for _, rule := range all {
		if rule.Active && rule.TriggerType == trigger {
			rules = append(rules, rule)
		}
	}

	return rules, nil
}

// StepsByRule returns the rule's parsed steps in position order.
func (rr *RuleRepository) StepsByRule(_ context.Context, ruleID string) ([]*models.AutomationStep, error) {
	rule, err := rr.load(ruleID)
	if err != nil {
		return nil, err
	}

	steps := make([]*models.AutomationStep, len(rule.Steps))
	copy(steps, rule.Steps)

	sort.Slice(steps, func(i, j int) bool {
		return steps[i].Position < steps[j].Position
	})

	return steps, nil
}

// Delete removes the rule file.
func (rr *RuleRepository) Delete(ctx context.Context, organizationID, ruleID string) error {
	_, err := rr.GetByID(ctx, organizationID, ruleID)
	if err != nil {
		return err
	}

	err = os.Remove(entityPath(rr.root, rulesDir, ruleID))
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", ruleID, err)
	}

	return nil
}

func (rr *RuleRepository) load(ruleID string) (*models.AutomationRule, error) {
	if err := validateID(ruleID); err != nil {
		return nil, fmt.Errorf("invalid rule ID: %w", err)
	}

	data, err := os.ReadFile(entityPath(rr.root, rulesDir, ruleID)) // #nosec G304 -- ID is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrRuleNotFound
		}

		return nil, fmt.Errorf("failed to read rule %s: %w", ruleID, err)
	}

	var rule models.AutomationRule

	err = json.Unmarshal(data, &rule)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule %s: %w", ruleID, err)
	}

	return &rule, nil
}

func (rr *RuleRepository) loadAll(_ context.Context) ([]*models.AutomationRule, error) {
	root := os.DirFS(rr.root + "/" + rulesDir)

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list rule files: %w", err)
	}

	rules := make([]*models.AutomationRule, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		rule, err := rr.load(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		rules = append(rules, rule)
	}

	return rules, nil
}
