package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ConditionOperator is a comparison applied to one execution-context field.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "not_contains"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorExists      ConditionOperator = "exists"
	OperatorNotExists   ConditionOperator = "not_exists"
)

// Condition compares one field of the execution context against a value.
// An empty condition (no field and no operator) evaluates true.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value,omitempty"`
}

// Evaluate applies the condition against the execution context. Numeric
// comparison is attempted first and falls back to string comparison.
func (c Condition) Evaluate(context map[string]any) (bool, error) {
	if c.Field == "" && c.Operator == "" {
		return true, nil
	}

	if c.Field == "" {
		return false, fmt.Errorf("condition operator %q requires a field", c.Operator)
	}

	actual, present := context[c.Field]

	switch c.Operator {
	case OperatorExists:
		return present && actual != nil, nil
	case OperatorNotExists:
		return !present || actual == nil, nil
	case OperatorEquals:
		return compareEqual(actual, c.Value), nil
	case OperatorNotEquals:
		return !compareEqual(actual, c.Value), nil
	case OperatorContains:
		return strings.Contains(stringify(actual), stringify(c.Value)), nil
	case OperatorNotContains:
		return !strings.Contains(stringify(actual), stringify(c.Value)), nil
	case OperatorGreaterThan:
		return compareOrdered(actual, c.Value, func(a, b float64) bool { return a > b })
	case OperatorLessThan:
		return compareOrdered(actual, c.Value, func(a, b float64) bool { return a < b })
	default:
		return false, fmt.Errorf("unsupported condition operator %q", c.Operator)
	}
}

func compareEqual(actual, expected any) bool {
	if a, aok := toFloat(actual); aok {
		if b, bok := toFloat(expected); bok {
			return a == b
		}
	}

	return stringify(actual) == stringify(expected)
}

func compareOrdered(actual, expected any, cmp func(a, b float64) bool) (bool, error) {
	a, aok := toFloat(actual)
	b, bok := toFloat(expected)

	if !aok || !bok {
		return false, fmt.Errorf("cannot compare %v and %v numerically", actual, expected)
	}

	return cmp(a, b), nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

func stringify(value any) string {
	if value == nil {
		return ""
	}

	return fmt.Sprintf("%v", value)
}
