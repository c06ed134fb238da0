package flow

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dripflow/dripflow/pkg/models"
)

// Strategy extracts the settings relevant to one step kind from a raw flow
// node. Strategies keep the settings map flat; the engine never walks the
// raw graph again after parse time.
type Strategy interface {
	Type() models.StepType
	Settings(node Node) (map[string]any, error)
}

func defaultStrategies() []Strategy {
	return []Strategy{
		&SendEmailStrategy{},
		&WaitStrategy{},
		&TagStrategy{stepType: models.StepTypeAddTag},
		&TagStrategy{stepType: models.StepTypeRemoveTag},
		&ConditionStrategy{},
		&LeadScoreStrategy{},
		&UpdateFieldStrategy{},
		&WebhookStrategy{},
		&GroupStrategy{stepType: models.StepTypeAddToGroup},
		&GroupStrategy{stepType: models.StepTypeRemoveFromGroup},
	}
}

// pick copies the named fields from the node payload into a flat settings
// map, skipping fields the author left unset.
func pick(node Node, fields ...string) map[string]any {
	settings := make(map[string]any, len(fields))

	for _, field := range fields {
		if value, ok := node.Data[field]; ok {
			settings[field] = value
		}
	}

	return settings
}

// SendEmailStrategy extracts subject and content fields for send-email nodes.
type SendEmailStrategy struct{}

func (s *SendEmailStrategy) Type() models.StepType { return models.StepTypeSendEmail }

func (s *SendEmailStrategy) Settings(node Node) (map[string]any, error) {
	return pick(node, "subject", "content", "html_content", "from_name"), nil
}

// WaitStrategy extracts the delay and unit for wait nodes.
type WaitStrategy struct{}

func (s *WaitStrategy) Type() models.StepType { return models.StepTypeWait }

func (s *WaitStrategy) Settings(node Node) (map[string]any, error) {
	settings := pick(node, "delay", "unit")

	if delay, ok := settings["delay"]; ok {
		if !isNumeric(delay) {
			return nil, fmt.Errorf("wait delay must be numeric, got %T", delay)
		}
	}

	return settings, nil
}

func isNumeric(value any) bool {
	switch v := value.(type) {
	case float64, int, int64:
		return true
	case string:
		_, err := strconv.ParseFloat(v, 64)

		return err == nil
	default:
		return false
	}
}

// TagStrategy extracts the tag name for add-tag and remove-tag nodes.
type TagStrategy struct {
	stepType models.StepType
}

func (s *TagStrategy) Type() models.StepType { return s.stepType }

func (s *TagStrategy) Settings(node Node) (map[string]any, error) {
	return pick(node, "tag"), nil
}

// ConditionStrategy extracts the field comparison for condition nodes.
type ConditionStrategy struct{}

func (s *ConditionStrategy) Type() models.StepType { return models.StepTypeCondition }

func (s *ConditionStrategy) Settings(node Node) (map[string]any, error) {
	return pick(node, "field", "operator", "value"), nil
}

// LeadScoreStrategy extracts the points delta for lead-score nodes.
type LeadScoreStrategy struct{}

func (s *LeadScoreStrategy) Type() models.StepType { return models.StepTypeUpdateLeadScore }

func (s *LeadScoreStrategy) Settings(node Node) (map[string]any, error) {
	return pick(node, "points"), nil
}

// UpdateFieldStrategy extracts the target field and value for update-field
// nodes.
type UpdateFieldStrategy struct{}

func (s *UpdateFieldStrategy) Type() models.StepType { return models.StepTypeUpdateField }

func (s *UpdateFieldStrategy) Settings(node Node) (map[string]any, error) {
	return pick(node, "field", "value"), nil
}

// WebhookStrategy extracts call details for webhook nodes.
type WebhookStrategy struct{}

func (s *WebhookStrategy) Type() models.StepType { return models.StepTypeWebhook }

func (s *WebhookStrategy) Settings(node Node) (map[string]any, error) {
	return pick(node, "url", "method", "payload"), nil
}

// GroupStrategy extracts the group reference for group membership nodes.
type GroupStrategy struct {
	stepType models.StepType
}

func (s *GroupStrategy) Type() models.StepType { return s.stepType }

func (s *GroupStrategy) Settings(node Node) (map[string]any, error) {
	return pick(node, "group_id", "group_name"), nil
}

// DefaultStrategy is the fallback for node types without a dedicated
// strategy. It copies every payload field verbatim: scalar values keep
// their type, nested maps and arrays are serialized to their JSON string
// representation.
type DefaultStrategy struct{}

func (s *DefaultStrategy) Type() models.StepType { return "" }

func (s *DefaultStrategy) Settings(node Node) (map[string]any, error) {
	settings := make(map[string]any, len(node.Data))

	for key, value := range node.Data {
		switch value.(type) {
		case string, float64, bool, nil:
			settings[key] = value
		default:
			serialized, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("cannot serialize field %q: %w", key, err)
			}

			settings[key] = string(serialized)
		}
	}

	return settings, nil
}
