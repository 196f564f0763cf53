package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowdeck/pkg/models"
)

func node(id string, nodeType models.NodeType) *models.Node {
	return &models.Node{ID: id, Name: id, Type: nodeType}
}

func link(source, target string) *models.Link {
	return &models.Link{Source: source, Target: target}
}

// diamond builds A→B, A→C, B→D, C→D.
func diamond() *models.Document {
	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		node("A", models.NodeTypePythonFile),
		node("B", models.NodeTypePythonFile),
		node("C", models.NodeTypePythonFile),
		node("D", models.NodeTypePythonFile),
	)
	doc.Links = append(doc.Links,
		link("A", "B"), link("A", "C"), link("B", "D"), link("C", "D"),
	)

	return doc
}

func TestDependenciesDiamondHasNoDuplicates(t *testing.T) {
	deps := Dependencies(diamond(), "D")

	assert.ElementsMatch(t, []string{"A", "B", "C"}, deps)
	assert.Len(t, deps, 3)
}

func TestDependenciesOfRootIsEmpty(t *testing.T) {
	assert.Empty(t, Dependencies(diamond(), "A"))
}

func TestDependenciesCycleSafe(t *testing.T) {
	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		node("A", models.NodeTypePythonFile),
		node("B", models.NodeTypePythonFile),
	)
	doc.Links = append(doc.Links, link("A", "B"), link("B", "A"))

	assert.Equal(t, []string{"A"}, Dependencies(doc, "B"))
}

func TestRunOrderRespectsDependencies(t *testing.T) {
	order, err := RunOrder(diamond())
	require.NoError(t, err)
	require.Len(t, order, 4)

	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	assert.Less(t, position["A"], position["B"])
	assert.Less(t, position["A"], position["C"])
	assert.Less(t, position["B"], position["D"])
	assert.Less(t, position["C"], position["D"])
}

func TestRunOrderExcludesInputAndDataSaveNodes(t *testing.T) {
	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		node("py", models.NodeTypePythonFile),
		node("inputs", models.NodeTypeInput),
		node("save", models.NodeTypeDataSave),
	)
	doc.Nodes[1].TargetNodeID = "py"
	doc.Links = append(doc.Links,
		&models.Link{Source: "inputs", Target: "py", Type: models.LinkTypeInputConnection},
		link("py", "save"),
	)

	order, err := RunOrder(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"py"}, order)
}

func TestRunOrderDetectsCycle(t *testing.T) {
	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		node("A", models.NodeTypePythonFile),
		node("B", models.NodeTypePythonFile),
	)
	doc.Links = append(doc.Links, link("A", "B"), link("B", "A"))

	_, err := RunOrder(doc)
	assert.Error(t, err)
}

func withCompanion(doc *models.Document, target string, params []string, values map[string]string) {
	companion := node(target+"-inputs", models.NodeTypeInput)
	companion.TargetNodeID = target
	companion.Parameters = params
	companion.InputValues = values
	doc.Nodes = append(doc.Nodes, companion)
	doc.Links = append(doc.Links, &models.Link{
		Source: companion.ID,
		Target: target,
		Type:   models.LinkTypeInputConnection,
	})
}

func TestGatherMergesMapReturnsKeywise(t *testing.T) {
	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		node("up", models.NodeTypePythonFile),
		node("down", models.NodeTypePythonFile),
	)
	doc.Links = append(doc.Links, link("up", "down"))
	withCompanion(doc, "down", []string{"x", "y"}, map[string]string{"x": "", "y": ""})

	results := map[string]models.NodeResult{
		"up": {NodeID: "up", Success: true, ReturnValue: map[string]any{
			"x": 1.0, "y": 2.0, "unrelated": 3.0,
		}},
	}

	vars := GatherInputVariables(doc, "down", results)
	assert.Equal(t, map[string]any{"x": 1.0, "y": 2.0}, vars.Arguments)
	assert.Equal(t, map[string]string{"x": "", "y": ""}, vars.InputValues)
}

func TestGatherMapsArraysPositionally(t *testing.T) {
	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		node("up", models.NodeTypePythonFile),
		node("down", models.NodeTypePythonFile),
	)
	doc.Links = append(doc.Links, link("up", "down"))
	withCompanion(doc, "down", []string{"first", "second"}, nil)

	results := map[string]models.NodeResult{
		"up": {NodeID: "up", Success: true, ReturnValue: []any{10.0, 20.0, 30.0}},
	}

	vars := GatherInputVariables(doc, "down", results)
	assert.Equal(t, map[string]any{"first": 10.0, "second": 20.0}, vars.Arguments)
}

func TestGatherMatchesPrimitives(t *testing.T) {
	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		node("up", models.NodeTypePythonFile),
		node("down", models.NodeTypePythonFile),
	)
	doc.Links = append(doc.Links, link("up", "down"))

	// Sole remaining parameter wins regardless of name.
	withCompanion(doc, "down", []string{"anything"}, nil)

	results := map[string]models.NodeResult{
		"up": {NodeID: "up", Success: true, ReturnValue: 7.0},
	}

	vars := GatherInputVariables(doc, "down", results)
	assert.Equal(t, map[string]any{"anything": 7.0}, vars.Arguments)
}

func TestGatherPrimitiveNameTypeAffinity(t *testing.T) {
	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		node("up", models.NodeTypePythonFile),
		node("down", models.NodeTypePythonFile),
	)
	doc.Links = append(doc.Links, link("up", "down"))
	withCompanion(doc, "down", []string{"label", "result"}, nil)

	results := map[string]models.NodeResult{
		"up": {NodeID: "up", Success: true, ReturnValue: 7.0},
	}

	vars := GatherInputVariables(doc, "down", results)
	assert.Equal(t, map[string]any{"result": 7.0}, vars.Arguments)
}

func TestGatherFallsBackToSourceDerivedName(t *testing.T) {
	doc := models.NewDocument()
	up := node("up", models.NodeTypePythonFile)
	up.Name = "Fetch Data"
	doc.Nodes = append(doc.Nodes, up, node("down", models.NodeTypePythonFile))
	doc.Links = append(doc.Links, link("up", "down"))

	results := map[string]models.NodeResult{
		"up": {NodeID: "up", Success: true, ReturnValue: "hello"},
	}

	vars := GatherInputVariables(doc, "down", results)
	assert.Equal(t, map[string]any{"fetch_data_result": "hello"}, vars.Arguments)
}

func TestGatherBridgesThroughIfNodes(t *testing.T) {
	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		node("up", models.NodeTypePythonFile),
		node("cond", models.NodeTypeIf),
		node("down", models.NodeTypePythonFile),
	)
	doc.Links = append(doc.Links, link("up", "cond"), link("cond", "down"))
	withCompanion(doc, "down", []string{"x"}, nil)

	results := map[string]models.NodeResult{
		"up": {NodeID: "up", Success: true, ReturnValue: map[string]any{"x": 5.0}},
	}

	vars := GatherInputVariables(doc, "down", results)
	assert.Equal(t, map[string]any{"x": 5.0}, vars.Arguments)
}

func TestGatherSkipsFailedUpstreamResults(t *testing.T) {
	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		node("up", models.NodeTypePythonFile),
		node("down", models.NodeTypePythonFile),
	)
	doc.Links = append(doc.Links, link("up", "down"))
	withCompanion(doc, "down", []string{"x"}, nil)

	results := map[string]models.NodeResult{
		"up": {NodeID: "up", Success: false, Error: "boom", ReturnValue: map[string]any{"x": 1.0}},
	}

	vars := GatherInputVariables(doc, "down", results)
	assert.Empty(t, vars.Arguments)
}

func TestEvaluateCondition(t *testing.T) {
	matched, err := EvaluateCondition(&models.LinkCondition{Expression: "x > 3"}, map[string]any{"x": 5.0})
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = EvaluateCondition(&models.LinkCondition{Expression: "x > 3"}, map[string]any{"x": 1.0})
	require.NoError(t, err)
	assert.False(t, matched)

	// No condition means the edge is always live.
	matched, err = EvaluateCondition(nil, nil)
	require.NoError(t, err)
	assert.True(t, matched)

	_, err = EvaluateCondition(&models.LinkCondition{Expression: "x >"}, map[string]any{"x": 1.0})
	assert.Error(t, err)
}

func TestBranchTargets(t *testing.T) {
	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		node("cond", models.NodeTypeIf),
		node("yes", models.NodeTypePythonFile),
		node("no", models.NodeTypePythonFile),
	)
	doc.Links = append(doc.Links,
		&models.Link{Source: "cond", Target: "yes", Condition: &models.LinkCondition{Expression: "x > 3", Branch: "true"}},
		&models.Link{Source: "cond", Target: "no", Condition: &models.LinkCondition{Expression: "x <= 3", Branch: "false"}},
	)

	targets, err := BranchTargets(doc, "cond", map[string]any{"x": 5.0})
	require.NoError(t, err)
	assert.Equal(t, []string{"yes"}, targets)

	targets, err = BranchTargets(doc, "cond", map[string]any{"x": 1.0})
	require.NoError(t, err)
	assert.Equal(t, []string{"no"}, targets)

	_, err = BranchTargets(doc, "yes", nil)
	assert.Error(t, err)
}

func TestRunStateMachine(t *testing.T) {
	run := NewRun(nil, "demo")
	ctx := context.Background()

	assert.Equal(t, RunStateIdle, run.State())
	assert.False(t, run.Finish(ctx, RunStateCompleted))

	require.True(t, run.Start(ctx))
	assert.Equal(t, RunStateRunning, run.State())
	assert.NotEmpty(t, run.ID())

	// A second start while running is refused.
	assert.False(t, run.Start(ctx))

	run.RecordResult(ctx, models.NodeResult{NodeID: "A", Success: true})

	_, ok := run.Result("A")
	assert.True(t, ok)

	assert.False(t, run.Finish(ctx, RunStateRunning))
	require.True(t, run.Finish(ctx, RunStateCompleted))
	assert.Equal(t, RunStateCompleted, run.State())

	frozen := run.Elapsed()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, frozen, run.Elapsed())

	// Results survive until the next start.
	_, ok = run.Result("A")
	assert.True(t, ok)

	require.True(t, run.Acknowledge())
	assert.Equal(t, RunStateIdle, run.State())

	require.True(t, run.Start(ctx))

	_, ok = run.Result("A")
	assert.False(t, ok)
}

func TestVariablesForResumePrefersLiveResults(t *testing.T) {
	doc := diamond()
	run := NewRun(nil, "demo")
	ctx := context.Background()

	require.True(t, run.Start(ctx))
	run.RecordResult(ctx, models.NodeResult{
		NodeID: "A", Success: true, ReturnValue: map[string]any{"a": 1.0},
	})
	run.RecordResult(ctx, models.NodeResult{
		NodeID: "B", Success: true, ReturnValue: map[string]any{"b": 2.0},
	})

	run.SetRestoredVariables(map[string]any{"stale": true})

	vars := run.VariablesForResume(doc, "D")
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, vars)
}

func TestVariablesForResumeFallsBackToSnapshot(t *testing.T) {
	doc := diamond()
	run := NewRun(nil, "demo")

	run.SetRestoredVariables(map[string]any{"a": 1.0})

	vars := run.VariablesForResume(doc, "D")
	assert.Equal(t, map[string]any{"a": 1.0}, vars)
}

func TestVariableSnapshotUnionsReturnValues(t *testing.T) {
	doc := diamond()
	run := NewRun(nil, "demo")
	ctx := context.Background()

	require.True(t, run.Start(ctx))
	run.RecordResult(ctx, models.NodeResult{
		NodeID: "A", Success: true, ReturnValue: map[string]any{"a": 1.0},
	})
	run.RecordResult(ctx, models.NodeResult{
		NodeID: "B", Success: true, FunctionName: "calc", ReturnValue: 9.0,
	})

	snapshot := run.VariableSnapshot(doc)
	assert.Equal(t, map[string]any{"a": 1.0, "calc_result": 9.0}, snapshot)
}

func dataSaveDoc(variable string) *models.Document {
	doc := models.NewDocument()
	save := node("save", models.NodeTypeDataSave)

	if variable != "" {
		save.DataSource = &models.DataSource{Origin: "py", Variable: variable}
	}

	doc.Nodes = append(doc.Nodes, node("py", models.NodeTypePythonFile), save)
	doc.Links = append(doc.Links, link("py", "save"))

	return doc
}

func TestPersistDataSavesExplicitVariable(t *testing.T) {
	doc := dataSaveDoc("total")
	run := NewRun(nil, "demo")
	ctx := context.Background()

	require.True(t, run.Start(ctx))
	run.RecordResult(ctx, models.NodeResult{
		NodeID: "py", Success: true,
		ReturnValue: map[string]any{"total": 42.0, "other": 1.0},
	})

	synthesized := PersistDataSaves(ctx, doc, "py", nil, run)
	require.Len(t, synthesized, 1)
	assert.True(t, synthesized[0].Success)
	assert.Equal(t, map[string]any{"total": 42.0}, synthesized[0].ReturnValue)
	assert.Equal(t, models.SaveStatusSaved, doc.Node("save").SaveStatus)

	result, ok := run.Result("save")
	require.True(t, ok)
	assert.True(t, result.Success)
}

func TestPersistDataSavesSoleReturnValue(t *testing.T) {
	doc := dataSaveDoc("")
	run := NewRun(nil, "demo")
	ctx := context.Background()

	require.True(t, run.Start(ctx))
	run.RecordResult(ctx, models.NodeResult{
		NodeID: "py", Success: true, ReturnValue: map[string]any{"only": 5.0},
	})

	synthesized := PersistDataSaves(ctx, doc, "py", nil, run)
	require.Len(t, synthesized, 1)
	assert.True(t, synthesized[0].Success)
	assert.Equal(t, map[string]any{"only": 5.0}, synthesized[0].ReturnValue)
}

func TestPersistDataSavesTupleReturn(t *testing.T) {
	doc := dataSaveDoc("second")
	run := NewRun(nil, "demo")
	ctx := context.Background()

	analysis := &models.FunctionAnalysis{
		Success: true,
		Returns: []models.ReturnInfo{
			{Type: models.ReturnTypeVariable, Name: "first", Line: 12},
			{Type: models.ReturnTypeVariable, Name: "second", Line: 12},
		},
	}

	require.True(t, run.Start(ctx))
	run.RecordResult(ctx, models.NodeResult{
		NodeID: "py", Success: true, ReturnValue: []any{"a", "b"},
	})

	synthesized := PersistDataSaves(ctx, doc, "py", analysis, run)
	require.Len(t, synthesized, 1)
	assert.True(t, synthesized[0].Success)
	assert.Equal(t, map[string]any{"second": "b"}, synthesized[0].ReturnValue)
}

func TestPersistDataSavesUnresolvedMarksError(t *testing.T) {
	doc := dataSaveDoc("missing")
	run := NewRun(nil, "demo")
	ctx := context.Background()

	require.True(t, run.Start(ctx))
	run.RecordResult(ctx, models.NodeResult{
		NodeID: "py", Success: true, ReturnValue: map[string]any{"total": 1.0},
	})

	synthesized := PersistDataSaves(ctx, doc, "py", nil, run)
	require.Len(t, synthesized, 1)
	assert.False(t, synthesized[0].Success)
	assert.NotEmpty(t, synthesized[0].Error)
	assert.Equal(t, models.SaveStatusError, doc.Node("save").SaveStatus)
}

func TestPersistDataSavesSkipsFailedSource(t *testing.T) {
	doc := dataSaveDoc("total")
	run := NewRun(nil, "demo")
	ctx := context.Background()

	require.True(t, run.Start(ctx))
	run.RecordResult(ctx, models.NodeResult{NodeID: "py", Success: false, Error: "boom"})

	assert.Empty(t, PersistDataSaves(ctx, doc, "py", nil, run))
}
