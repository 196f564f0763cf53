package planner

import (
	"strings"

	"github.com/dukex/flowdeck/pkg/models"
)

// InputVariables is what a node needs before it can run: function arguments
// resolved from upstream return values, and user-entered values from its
// companion input node.
type InputVariables struct {
	Arguments   map[string]any
	InputValues map[string]string
}

// upstreamSources returns the direct upstream nodes feeding the given node.
// If-nodes are transparent: their own upstream nodes bridge through them.
// Input nodes are excluded; their values travel separately.
func upstreamSources(doc *models.Document, nodeID string, visited map[string]struct{}) []*models.Node {
	if visited == nil {
		visited = map[string]struct{}{nodeID: {}}
	}

	var sources []*models.Node

	for _, link := range doc.Links {
		if link.Target != nodeID || link.Type == models.LinkTypeInputConnection {
			continue
		}

		source := doc.Node(link.Source)
		if source == nil {
			continue
		}

		if _, seen := visited[source.ID]; seen {
			continue
		}

		visited[source.ID] = struct{}{}

		if source.Type == models.NodeTypeIf {
			sources = append(sources, upstreamSources(doc, source.ID, visited)...)

			continue
		}

		if source.Type == models.NodeTypeInput {
			continue
		}

		sources = append(sources, source)
	}

	return sources
}

// declaredParameters resolves the target function's parameter names from the
// node's companion input node.
func declaredParameters(doc *models.Document, nodeID string) []string {
	for _, n := range doc.Nodes {
		if n.IsInputNode() && n.TargetNodeID == nodeID {
			return n.Parameters
		}
	}

	return nil
}

// GatherInputVariables resolves the variables a node needs from upstream
// execution results and its companion input node.
//
// Upstream return values fill the node's expected parameters: maps merge
// key-wise (keys outside the expected set are dropped), arrays map
// positionally onto the remaining unfilled parameters, and primitives are
// matched by heuristic. Unmatched primitives land under a name derived from
// their source node so no data silently disappears.
func GatherInputVariables(doc *models.Document, nodeID string, results map[string]models.NodeResult) InputVariables {
	expected := declaredParameters(doc, nodeID)
	args := make(map[string]any)

	remaining := func() []string {
		var out []string

		for _, p := range expected {
			if _, filled := args[p]; !filled {
				out = append(out, p)
			}
		}

		return out
	}

	for _, source := range upstreamSources(doc, nodeID, nil) {
		result, ran := results[source.ID]
		if !ran || !result.Success || result.ReturnValue == nil {
			continue
		}

		switch value := result.ReturnValue.(type) {
		case map[string]any:
			for key, v := range value {
				if len(expected) == 0 || contains(expected, key) {
					args[key] = v
				}
			}
		case []any:
			open := remaining()

			for i, v := range value {
				if i >= len(open) {
					break
				}

				args[open[i]] = v
			}
		default:
			name := matchPrimitive(remaining(), value)
			if name == "" {
				name = sourceVariableName(source, result)
			}

			args[name] = value
		}
	}

	inputValues := make(map[string]string)

	for _, n := range doc.Nodes {
		if n.IsInputNode() && n.TargetNodeID == nodeID {
			for k, v := range n.InputValues {
				inputValues[k] = v
			}
		}
	}

	return InputVariables{Arguments: args, InputValues: inputValues}
}

// matchPrimitive picks the expected parameter a loose primitive value should
// fill: a sole remaining parameter wins, then name/type affinity, then the
// first remaining parameter. Empty when no parameters remain.
func matchPrimitive(open []string, value any) string {
	if len(open) == 0 {
		return ""
	}

	if len(open) == 1 {
		return open[0]
	}

	isNumber := false
	isString := false

	switch value.(type) {
	case float64, float32, int, int64:
		isNumber = true
	case string:
		isString = true
	}

	for _, p := range open {
		if p == "result" && isNumber {
			return p
		}

		if p == "text" && isString {
			return p
		}
	}

	return open[0]
}

func sourceVariableName(source *models.Node, result models.NodeResult) string {
	if result.FunctionName != "" {
		return result.FunctionName + "_result"
	}

	name := strings.ToLower(strings.TrimSpace(source.Name))
	name = strings.ReplaceAll(name, " ", "_")

	if name == "" {
		name = source.ID
	}

	return name + "_result"
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}

	return false
}
