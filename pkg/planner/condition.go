package planner

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/dukex/flowdeck/pkg/models"
)

// EvaluateCondition evaluates an if-node branch condition against the
// gathered variables. The expression must produce a boolean.
func EvaluateCondition(condition *models.LinkCondition, variables map[string]any) (bool, error) {
	if condition == nil || condition.Expression == "" {
		return true, nil
	}

	program, err := expr.Compile(condition.Expression, expr.Env(variables), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("invalid condition %q: %w", condition.Expression, err)
	}

	result, err := expr.Run(program, variables)
	if err != nil {
		return false, fmt.Errorf("condition %q failed: %w", condition.Expression, err)
	}

	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not produce a boolean", condition.Expression)
	}

	return matched, nil
}

// BranchTargets resolves which downstream targets of an if-node are live
// given the gathered variables: a link whose condition evaluates true (or
// carries none) is followed, the rest are skipped.
func BranchTargets(doc *models.Document, ifNodeID string, variables map[string]any) ([]string, error) {
	node := doc.Node(ifNodeID)
	if node == nil || node.Type != models.NodeTypeIf {
		return nil, fmt.Errorf("node %q is not a conditional", ifNodeID)
	}

	var targets []string

	for _, link := range doc.Links {
		if link.Source != ifNodeID {
			continue
		}

		matched, err := EvaluateCondition(link.Condition, variables)
		if err != nil {
			return nil, err
		}

		if matched {
			targets = append(targets, link.Target)
		}
	}

	return targets, nil
}
