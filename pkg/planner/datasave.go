package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/flowdeck/pkg/models"
)

// PersistDataSaves resolves the value each data-save node connected to an
// executed python node should capture and synthesizes an execution result
// for it, so data-save nodes participate in history and reporting without
// being part of the run order. A node whose value cannot be resolved gets a
// failed result; the run itself is never aborted.
//
// Resolution order: the user-selected variable name, else the sole return
// value, else a positional match against the return-statement analysis
// grouped by source line (tuple returns).
func PersistDataSaves(ctx context.Context, doc *models.Document, sourceID string, analysis *models.FunctionAnalysis, run *Run) []models.NodeResult {
	sourceResult, ok := run.Result(sourceID)
	if !ok || !sourceResult.Success {
		return nil
	}

	var synthesized []models.NodeResult

	for _, link := range doc.Links {
		if !link.Touches(sourceID) {
			continue
		}

		otherID := link.Source
		if otherID == sourceID {
			otherID = link.Target
		}

		node := doc.Node(otherID)
		if node == nil || !node.IsDataSaveNode() {
			continue
		}

		result := models.NodeResult{
			NodeID:    node.ID,
			Timestamp: time.Now().UTC(),
		}

		value, name, err := resolveDataSaveValue(node, sourceResult, analysis)
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			node.SaveStatus = models.SaveStatusError
		} else {
			result.Success = true
			result.ReturnValue = map[string]any{name: value}
			result.Output = fmt.Sprintf("saved %s", name)
			node.SaveStatus = models.SaveStatusSaved
		}

		run.RecordResult(ctx, result)
		synthesized = append(synthesized, result)
	}

	return synthesized
}

func resolveDataSaveValue(node *models.Node, sourceResult models.NodeResult, analysis *models.FunctionAnalysis) (any, string, error) {
	wanted := ""
	if node.DataSource != nil {
		wanted = node.DataSource.Variable
	}

	switch value := sourceResult.ReturnValue.(type) {
	case map[string]any:
		if wanted != "" {
			if v, ok := value[wanted]; ok {
				return v, wanted, nil
			}

			return nil, "", fmt.Errorf("variable %q not present in return value", wanted)
		}

		if len(value) == 1 {
			for k, v := range value {
				return v, k, nil
			}
		}

		return nil, "", fmt.Errorf("ambiguous return value, select a variable to save")
	case []any:
		if wanted == "" {
			return nil, "", fmt.Errorf("ambiguous tuple return, select a variable to save")
		}

		index := tupleIndex(analysis, wanted)
		if index < 0 || index >= len(value) {
			return nil, "", fmt.Errorf("variable %q not matched in tuple return", wanted)
		}

		return value[index], wanted, nil
	case nil:
		return nil, "", fmt.Errorf("source node produced no return value")
	default:
		name := wanted
		if name == "" {
			name = firstReturnName(analysis)
		}

		if name == "" {
			name = "value"
		}

		return value, name, nil
	}
}

// tupleIndex locates a named return inside the analysis, grouped by the
// source line of the return statement so tuple positions line up.
func tupleIndex(analysis *models.FunctionAnalysis, name string) int {
	if analysis == nil {
		return -1
	}

	for _, group := range analysis.ReturnsByLine() {
		for i, ret := range group {
			if ret.Name == name {
				return i
			}
		}
	}

	return -1
}

func firstReturnName(analysis *models.FunctionAnalysis) string {
	if analysis == nil {
		return ""
	}

	for _, ret := range analysis.Returns {
		if ret.Name != "" {
			return ret.Name
		}
	}

	return ""
}
