package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dripflow/dripflow/pkg/flow"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/persistence"
)

// flowSchema is the structural contract for authored flow definitions:
// an object of nodes keyed by id, each node carrying at least a type.
const flowSchema = `{
	"type": "object",
	"required": ["nodes"],
	"properties": {
		"nodes": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["type"],
				"properties": {
					"type": {"type": "string", "minLength": 1},
					"data": {"type": "object"}
				}
			}
		}
	}
}`

var validTriggerTypes = map[models.TriggerType]bool{
	models.TriggerTagAdded:       true,
	models.TriggerTagRemoved:     true,
	models.TriggerListJoined:     true,
	models.TriggerListLeft:       true,
	models.TriggerEmailOpened:    true,
	models.TriggerEmailClicked:   true,
	models.TriggerContactCreated: true,
}

// Rules is the rule authoring service: it validates flow definitions,
// parses them into executable steps, and persists both atomically.
type Rules struct {
	persistence persistence.Persistence
	parser      *flow.Parser
	validator   *validator.Validate
	schema      *gojsonschema.Schema
	logger      *slog.Logger
}

// NewRules creates the rule authoring service.
func NewRules(p persistence.Persistence, parser *flow.Parser, v *validator.Validate, logger *slog.Logger) (*Rules, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(flowSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile flow schema: %w", err)
	}

	return &Rules{
		persistence: p,
		parser:      parser,
		validator:   v,
		schema:      schema,
		logger:      logger.With("module", "rule_service"),
	}, nil
}

// SaveRuleRequest carries the fields to create or update a rule.
type SaveRuleRequest struct {
	OrganizationID string          `validate:"required"`
	Name           string          `validate:"required"`
	TriggerType    string          `validate:"required"`
	Active         bool
	FlowDefinition json.RawMessage `validate:"required"`
}

// CreateRule validates the request, parses the flow definition, and saves
// the rule together with its parsed steps.
func (s *Rules) CreateRule(ctx context.Context, req SaveRuleRequest) (*models.AutomationRule, error) {
	rule := &models.AutomationRule{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}

	err := s.applyRequest(ctx, rule, req)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "rule created",
		"rule_id", rule.ID,
		"organization_id", rule.OrganizationID,
		"steps", len(rule.Steps),
	)

	return rule, nil
}

// UpdateRule re-validates and re-parses the flow, replacing the stored rule
// and its steps.
func (s *Rules) UpdateRule(ctx context.Context, ruleID string, req SaveRuleRequest) (*models.AutomationRule, error) {
	existing, err := s.persistence.RuleRepository().GetByID(ctx, req.OrganizationID, ruleID)
	if err != nil {
		return nil, err
	}

	err = s.applyRequest(ctx, existing, req)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "rule updated", "rule_id", ruleID)

	return existing, nil
}

// GetRule retrieves a rule with its parsed steps.
func (s *Rules) GetRule(ctx context.Context, organizationID, ruleID string) (*models.AutomationRule, error) {
	return s.persistence.RuleRepository().GetByID(ctx, organizationID, ruleID)
}

// ListRules returns the organization's rules.
func (s *Rules) ListRules(ctx context.Context, organizationID string) ([]*models.AutomationRule, error) {
	return s.persistence.RuleRepository().List(ctx, organizationID)
}

// DeleteRule removes a rule and its steps.
func (s *Rules) DeleteRule(ctx context.Context, organizationID, ruleID string) error {
	return s.persistence.RuleRepository().Delete(ctx, organizationID, ruleID)
}

// SetActive toggles the rule's activation state.
func (s *Rules) SetActive(ctx context.Context, organizationID, ruleID string, active bool) (*models.AutomationRule, error) {
	rule, err := s.persistence.RuleRepository().GetByID(ctx, organizationID, ruleID)
	if err != nil {
		return nil, err
	}

	if rule.Active == active {
		return rule, nil
	}

	rule.Active = active
	rule.UpdatedAt = time.Now().UTC()

	err = s.persistence.RuleRepository().Save(ctx, rule)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "rule activation changed", "rule_id", ruleID, "active", active)

	return rule, nil
}

func (s *Rules) applyRequest(ctx context.Context, rule *models.AutomationRule, req SaveRuleRequest) error {
	err := s.validateRequest(req)
	if err != nil {
		return err
	}

	rule.OrganizationID = req.OrganizationID
	rule.Name = req.Name
	rule.TriggerType = models.TriggerType(strings.ToLower(req.TriggerType))
	rule.Active = req.Active
	rule.FlowDefinition = req.FlowDefinition
	rule.UpdatedAt = time.Now().UTC()

	steps, err := s.parser.Parse(req.FlowDefinition, rule)
	if err != nil {
		return &ServiceError{Op: "parse_flow", Err: fmt.Errorf("%w: %v", ErrInvalidFlow, err)}
	}

	rule.Steps = steps

	err = s.persistence.RuleRepository().Save(ctx, rule)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	return nil
}

func (s *Rules) validateRequest(req SaveRuleRequest) error {
	err := s.validator.Struct(req)
	if err != nil {
		return &ServiceError{Op: "validate_rule", Err: fmt.Errorf("%w: %v", ErrInvalidRequest, err)}
	}

	trigger := models.TriggerType(strings.ToLower(req.TriggerType))
	if !validTriggerTypes[trigger] {
		return &ServiceError{Op: "validate_rule", Err: fmt.Errorf("%w: %q", ErrInvalidTriggerType, req.TriggerType)}
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(req.FlowDefinition))
	if err != nil {
		return &ServiceError{Op: "validate_flow", Err: fmt.Errorf("%w: %v", ErrInvalidFlow, err)}
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return &ServiceError{
			Op:  "validate_flow",
			Err: fmt.Errorf("%w: %s", ErrInvalidFlow, strings.Join(details, "; ")),
		}
	}

	return nil
}
