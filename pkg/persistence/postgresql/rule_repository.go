package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

// RuleRepository handles automation rule and parsed step storage.
type RuleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(db *sql.DB, logger *slog.Logger) *RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

// Save upserts the rule and replaces its parsed steps in one transaction.
func (r *RuleRepository) Save(ctx context.Context, rule *models.AutomationRule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO automation_rules (id, organization_id, name, trigger_type, active, flow_definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			trigger_type = EXCLUDED.trigger_type,
			active = EXCLUDED.active,
			flow_definition = EXCLUDED.flow_definition,
			updated_at = EXCLUDED.updated_at
	`,
		rule.ID,
		rule.OrganizationID,
		rule.Name,
		rule.TriggerType,
		rule.Active,
		[]byte(rule.FlowDefinition),
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM automation_steps WHERE rule_id = $1", rule.ID)
	if err != nil {
		return fmt.Errorf("failed to clear rule steps: %w", err)
	}

	for _, step := range rule.Steps {
		settingsJSON, err := json.Marshal(step.Settings)
		if err != nil {
			return fmt.Errorf("failed to marshal step settings: %w", err)
		}

		metaJSON, err := json.Marshal(step.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal step meta: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO automation_steps (rule_id, id, step_type, position, settings, meta)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, rule.ID, step.ID, step.Type, step.Position, settingsJSON, metaJSON)
		if err != nil {
			return fmt.Errorf("failed to save step %s: %w", step.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit rule save: %w", err)
	}

	return nil
}

// GetByID retrieves a rule with its parsed steps.
func (r *RuleRepository) GetByID(ctx context.Context, organizationID, ruleID string) (*models.AutomationRule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, trigger_type, active, flow_definition, created_at, updated_at
		FROM automation_rules
		WHERE id = $1 AND organization_id = $2
	`, ruleID, organizationID)

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrRuleNotFound
		}

		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	rule.Steps, err = r.StepsByRule(ctx, rule.ID)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

// List returns all rules of one organization, without their steps.
func (r *RuleRepository) List(ctx context.Context, organizationID string) ([]*models.AutomationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, name, trigger_type, active, flow_definition, created_at, updated_at
		FROM automation_rules
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}

	return r.collectRules(ctx, rows)
}

// ListActiveByTrigger returns the active rules matching one trigger type.
func (r *RuleRepository) ListActiveByTrigger(ctx context.Context, organizationID string, trigger models.TriggerType) ([]*models.AutomationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, name, trigger_type, active, flow_definition, created_at, updated_at
		FROM automation_rules
		WHERE organization_id = $1 AND trigger_type = $2 AND active
		ORDER BY created_at
	`, organizationID, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules by trigger: %w", err)
	}

	return r.collectRules(ctx, rows)
}

// StepsByRule returns the rule's parsed steps in position order.
func (r *RuleRepository) StepsByRule(ctx context.Context, ruleID string) ([]*models.AutomationStep, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rule_id, id, step_type, position, settings, meta
		FROM automation_steps
		WHERE rule_id = $1
		ORDER BY position
	`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule steps: %w", err)
	}

	defer r.closeRows(ctx, rows)

	var steps []*models.AutomationStep

	for rows.Next() {
		var (
			step                  models.AutomationStep
			settingsJSON, metaJSON []byte
		)

		err := rows.Scan(&step.RuleID, &step.ID, &step.Type, &step.Position, &settingsJSON, &metaJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		step.Settings = make(map[string]any)
		if settingsJSON != nil {
			err = json.Unmarshal(settingsJSON, &step.Settings)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal step settings: %w", err)
			}
		}

		if metaJSON != nil {
			err = json.Unmarshal(metaJSON, &step.Meta)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal step meta: %w", err)
			}
		}

		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule steps: %w", err)
	}

	return steps, nil
}

// Delete removes a rule and, via cascade, its steps.
func (r *RuleRepository) Delete(ctx context.Context, organizationID, ruleID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM automation_rules WHERE id = $1 AND organization_id = $2", ruleID, organizationID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrRuleNotFound
	}

	return nil
}

func (r *RuleRepository) collectRules(ctx context.Context, rows *sql.Rows) ([]*models.AutomationRule, error) {
	defer r.closeRows(ctx, rows)

	var rules []*models.AutomationRule

	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

func (r *RuleRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func scanRule(scanner interface{ Scan(dest ...any) error }) (*models.AutomationRule, error) {
	var (
		rule           models.AutomationRule
		flowDefinition []byte
	)

	err := scanner.Scan(
		&rule.ID,
		&rule.OrganizationID,
		&rule.Name,
		&rule.TriggerType,
		&rule.Active,
		&flowDefinition,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.FlowDefinition = flowDefinition

	return &rule, nil
}
