// Package flow converts user-authored flow graph JSON into ordered,
// executable automation steps using one parsing strategy per node type.
package flow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dripflow/dripflow/pkg/models"
)

// Graph is the raw flow definition as authored: nodes keyed by node id.
// Edges are authoring metadata and are not needed to materialize steps.
type Graph struct {
	Nodes map[string]Node `json:"nodes"`
}

// Node is one raw node of the flow graph.
type Node struct {
	Type     string         `json:"type"`
	Data     map[string]any `json:"data"`
	Position map[string]any `json:"position,omitempty"`
}

// Parser turns flow graph JSON into ordered steps. Unknown node types fall
// back to a strategy that copies the node payload verbatim.
type Parser struct {
	strategies map[models.StepType]Strategy
	fallback   Strategy
	logger     *slog.Logger
}

// NewParser creates a parser with all built-in strategies registered.
func NewParser(logger *slog.Logger) *Parser {
	p := &Parser{
		strategies: make(map[models.StepType]Strategy),
		fallback:   &DefaultStrategy{},
		logger:     logger.With("module", "flow_parser"),
	}

	for _, s := range defaultStrategies() {
		p.Register(s)
	}

	return p
}

// Register adds or replaces the strategy for one step type.
func (p *Parser) Register(s Strategy) {
	p.strategies[s.Type()] = s
}

// Parse converts raw flow JSON into the rule's ordered steps.
//
// Malformed JSON is a hard failure surfaced to the caller; a missing or
// empty nodes object degrades to an empty step list. Trigger nodes describe
// when the rule starts, not what it does, and are excluded. A node whose
// strategy rejects it is logged and dropped without aborting the rest of
// the parse.
//
// The graph carries no step ordering, so nodes are visited in lexicographic
// node-id order and the order index is assigned in that sequence.
func (p *Parser) Parse(raw []byte, rule *models.AutomationRule) ([]*models.AutomationStep, error) {
	var graph Graph

	err := json.Unmarshal(raw, &graph)
	if err != nil {
		return nil, fmt.Errorf("malformed flow definition: %w", err)
	}

	steps := make([]*models.AutomationStep, 0, len(graph.Nodes))
	if len(graph.Nodes) == 0 {
		return steps, nil
	}

	nodeIDs := make([]string, 0, len(graph.Nodes))
	for id := range graph.Nodes {
		nodeIDs = append(nodeIDs, id)
	}

	sort.Strings(nodeIDs)

	position := 0

	for _, nodeID := range nodeIDs {
		node := graph.Nodes[nodeID]

		if strings.EqualFold(node.Type, "trigger") {
			continue
		}

		stepType := models.NormalizeStepType(node.Type)

		strategy, ok := p.strategies[stepType]
		if !ok {
			strategy = p.fallback
		}

		settings, err := strategy.Settings(node)
		if err != nil {
			p.logger.Warn("Skipping unparseable flow node",
				"rule_id", rule.ID, "node_id", nodeID, "node_type", node.Type, "error", err)

			continue
		}

		steps = append(steps, &models.AutomationStep{
			ID:       nodeID,
			RuleID:   rule.ID,
			Type:     stepType,
			Position: position,
			Settings: settings,
			Meta:     node.Position,
		})
		position++
	}

	return steps, nil
}
