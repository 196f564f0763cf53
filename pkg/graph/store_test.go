package graph

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowdeck/pkg/analyzer"
	"github.com/dukex/flowdeck/pkg/eventbus"
	"github.com/dukex/flowdeck/pkg/events"
	"github.com/dukex/flowdeck/pkg/models"
)

// recordingPublisher captures events in order for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) typesSeen() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetType())
	}

	return out
}

type countingAutosave struct {
	mu    sync.Mutex
	count int
}

func (c *countingAutosave) ScheduleAutosave() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count++
}

func (c *countingAutosave) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

func testAnalyzer() analyzer.Static {
	return analyzer.Static{
		"add.py": &models.FunctionAnalysis{
			Success:          true,
			FunctionName:     "add",
			FormalParameters: []string{"x", "y"},
		},
		"scale.py": &models.FunctionAnalysis{
			Success:          true,
			FunctionName:     "scale",
			FormalParameters: []string{"x", "factor"},
		},
		"noop.py": &models.FunctionAnalysis{
			Success:      true,
			FunctionName: "noop",
		},
	}
}

func newTestStore(t *testing.T) (*Store, *recordingPublisher) {
	t.Helper()

	publisher := &recordingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewStore(logger, publisher, testAnalyzer())
	store.SetFlowchart("test-flowchart")

	return store, publisher
}

func TestAddNodeAllocatesIDsAndWidth(t *testing.T) {
	store, publisher := newTestStore(t)
	ctx := context.Background()

	first, err := store.AddNode(ctx, NodeInput{Name: "First"})
	require.NoError(t, err)

	second, err := store.AddNode(ctx, NodeInput{Name: "A much longer node name here"})
	require.NoError(t, err)

	assert.Equal(t, "node-1", first.ID)
	assert.Equal(t, "node-2", second.ID)
	assert.Equal(t, models.NodeTypeDefault, first.Type)
	assert.Equal(t, models.NodeWidth(first.Name, first.Type), first.Width)
	assert.Greater(t, second.Width, first.Width)

	types := publisher.typesSeen()
	assert.Contains(t, types, events.NodeAddedEvent)
	assert.Contains(t, types, events.StateChangedEvent)
}

func TestAddNodeCollectsAllViolations(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.AddNode(context.Background(), NodeInput{Type: "mystery"})
	require.Error(t, err)

	var validationErr *models.ValidationError

	require.ErrorAs(t, err, &validationErr)
	assert.GreaterOrEqual(t, len(validationErr.Violations), 2)
	assert.Equal(t, 0, len(store.Nodes()))
}

func TestAddNodeSchedulesAutosave(t *testing.T) {
	store, _ := newTestStore(t)
	autosave := &countingAutosave{}
	store.SetAutosave(autosave)

	_, err := store.AddNode(context.Background(), NodeInput{Name: "A"})
	require.NoError(t, err)
	store.Wait()

	assert.GreaterOrEqual(t, autosave.calls(), 1)
}

func TestAddLinkIsIdempotentOnUnorderedPair(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a, err := store.AddNode(ctx, NodeInput{Name: "A"})
	require.NoError(t, err)
	b, err := store.AddNode(ctx, NodeInput{Name: "B"})
	require.NoError(t, err)

	link, err := store.AddLink(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, link)

	// Same direction.
	dup, err := store.AddLink(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, dup)

	// Reversed direction.
	dup, err = store.AddLink(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Nil(t, dup)

	assert.Equal(t, 1, len(store.Links()))
}

func TestAddLinkRejectsSelfLoopAndUnknownEndpoints(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a, err := store.AddNode(ctx, NodeInput{Name: "A"})
	require.NoError(t, err)

	_, err = store.AddLink(ctx, a.ID, a.ID)
	assert.True(t, models.IsValidationError(err))

	_, err = store.AddLink(ctx, a.ID, "ghost")
	assert.True(t, models.IsValidationError(err))
	assert.Equal(t, 0, len(store.Links()))
}

func TestPythonNodeGrowsCompanionInputNode(t *testing.T) {
	store, publisher := newTestStore(t)
	ctx := context.Background()

	target, err := store.AddNode(ctx, NodeInput{
		Name:       "Add numbers",
		Type:       models.NodeTypePythonFile,
		PythonFile: "nodes/add.py",
		X:          500,
		Y:          200,
	})
	require.NoError(t, err)
	assert.Equal(t, "add.py", target.PythonFile)

	store.Wait()

	var companions []*models.Node

	for _, n := range store.Nodes() {
		if n.IsInputNode() {
			companions = append(companions, n)
		}
	}

	require.Len(t, companions, 1)

	companion := companions[0]
	assert.Equal(t, target.ID, companion.TargetNodeID)
	assert.Equal(t, models.InputNodeWidth, companion.Width)
	assert.Equal(t, "Add numbers inputs", companion.Name)
	assert.Equal(t, []string{"x", "y"}, companion.Parameters)
	assert.Equal(t, map[string]string{"x": "", "y": ""}, companion.InputValues)
	assert.True(t, companion.SkipInputCheck)
	assert.Less(t, companion.X, target.X)

	link, ok := store.Link(companion.ID, target.ID)
	require.True(t, ok)
	assert.Equal(t, models.LinkTypeInputConnection, link.Type)
	assert.Equal(t, models.LinkStyleDashed, link.Style)
	assert.False(t, link.Selectable())

	assert.Contains(t, publisher.typesSeen(), events.InputNodeCreatedEvent)
}

func TestPythonNodeWithoutParametersGetsNoCompanion(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.AddNode(context.Background(), NodeInput{
		Name:       "Noop",
		Type:       models.NodeTypePythonFile,
		PythonFile: "noop.py",
	})
	require.NoError(t, err)

	store.Wait()

	for _, n := range store.Nodes() {
		assert.False(t, n.IsInputNode())
	}
}

func TestAnalyzerFailureLeavesNodeWithoutCompanion(t *testing.T) {
	store, _ := newTestStore(t)

	node, err := store.AddNode(context.Background(), NodeInput{
		Name:       "Unknown",
		Type:       models.NodeTypePythonFile,
		PythonFile: "missing.py",
	})
	require.NoError(t, err)

	store.Wait()

	_, ok := store.Node(node.ID)
	assert.True(t, ok)
	assert.Len(t, store.Nodes(), 1)
}

func TestChangingPythonFilePreservesMatchingInputValues(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	target, err := store.AddNode(ctx, NodeInput{
		Name:       "Calc",
		Type:       models.NodeTypePythonFile,
		PythonFile: "add.py",
	})
	require.NoError(t, err)
	store.Wait()

	var companion *models.Node

	for _, n := range store.Nodes() {
		if n.IsInputNode() {
			companion = n
		}
	}

	require.NotNil(t, companion)

	ok, err := store.UpdateNode(ctx, companion.ID, NodeUpdate{
		InputValues: map[string]string{"x": "10", "y": "20"},
	})
	require.NoError(t, err)
	require.True(t, ok)

	newFile := "scale.py"
	ok, err = store.UpdateNode(ctx, target.ID, NodeUpdate{PythonFile: &newFile})
	require.NoError(t, err)
	require.True(t, ok)

	store.Wait()

	companion = nil

	for _, n := range store.Nodes() {
		if n.IsInputNode() {
			require.Nil(t, companion, "expected a single input node")

			companion = n
		}
	}

	require.NotNil(t, companion)
	assert.Equal(t, []string{"x", "factor"}, companion.Parameters)
	assert.Equal(t, map[string]string{"x": "10", "factor": ""}, companion.InputValues)
}

func TestRemoveInputNodeRequiresForce(t *testing.T) {
	store, publisher := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddNode(ctx, NodeInput{
		Name:       "Calc",
		Type:       models.NodeTypePythonFile,
		PythonFile: "add.py",
	})
	require.NoError(t, err)
	store.Wait()

	var companion *models.Node

	for _, n := range store.Nodes() {
		if n.IsInputNode() {
			companion = n
		}
	}

	require.NotNil(t, companion)

	removed := store.RemoveNode(ctx, companion.ID, false)
	assert.False(t, removed)
	assert.Contains(t, publisher.typesSeen(), events.InputNodeDeletionAttemptedEvent)

	_, stillThere := store.Node(companion.ID)
	assert.True(t, stillThere)

	removed = store.RemoveNode(ctx, companion.ID, true)
	assert.True(t, removed)

	_, stillThere = store.Node(companion.ID)
	assert.False(t, stillThere)
}

func TestRemovePythonNodeCascades(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	target, err := store.AddNode(ctx, NodeInput{
		Name:       "Calc",
		Type:       models.NodeTypePythonFile,
		PythonFile: "add.py",
	})
	require.NoError(t, err)

	other, err := store.AddNode(ctx, NodeInput{Name: "Other"})
	require.NoError(t, err)

	store.Wait()

	_, err = store.AddLink(ctx, target.ID, other.ID)
	require.NoError(t, err)

	removed := store.RemoveNode(ctx, target.ID, false)
	require.True(t, removed)

	assert.Equal(t, 0, len(store.Links()))

	remaining := store.Nodes()
	require.Len(t, remaining, 1)
	assert.Equal(t, other.ID, remaining[0].ID)
}

func TestGroupDissolvesBelowMinimumSize(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a, _ := store.AddNode(ctx, NodeInput{Name: "A"})
	b, _ := store.AddNode(ctx, NodeInput{Name: "B"})

	group, err := store.CreateGroup(ctx, []string{a.ID, b.ID}, GroupInput{Name: "Pair"})
	require.NoError(t, err)

	removed := store.RemoveNode(ctx, a.ID, false)
	require.True(t, removed)

	_, ok := store.Group(group.ID)
	assert.False(t, ok)

	bNode, ok := store.Node(b.ID)
	require.True(t, ok)
	assert.Empty(t, bNode.GroupID)
}

func TestCreateGroupRejectsSmallAndAlreadyGrouped(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a, _ := store.AddNode(ctx, NodeInput{Name: "A"})
	b, _ := store.AddNode(ctx, NodeInput{Name: "B"})
	c, _ := store.AddNode(ctx, NodeInput{Name: "C"})

	_, err := store.CreateGroup(ctx, []string{a.ID}, GroupInput{})
	assert.True(t, models.IsValidationError(err))

	_, err = store.CreateGroup(ctx, []string{a.ID, b.ID}, GroupInput{})
	require.NoError(t, err)

	_, err = store.CreateGroup(ctx, []string{b.ID, c.ID}, GroupInput{})
	assert.True(t, models.IsValidationError(err))
}

func TestCreateGroupDefaultsName(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a, _ := store.AddNode(ctx, NodeInput{Name: "A"})
	b, _ := store.AddNode(ctx, NodeInput{Name: "B"})

	group, err := store.CreateGroup(ctx, []string{a.ID, b.ID}, GroupInput{})
	require.NoError(t, err)
	assert.Equal(t, "Group 1", group.Name)
}

func TestMagnetPairIsSymmetricAndExclusive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a, _ := store.AddNode(ctx, NodeInput{Name: "A"})
	b, _ := store.AddNode(ctx, NodeInput{Name: "B"})
	c, _ := store.AddNode(ctx, NodeInput{Name: "C"})

	require.NoError(t, store.SetMagnetPair(ctx, a.ID, b.ID))

	partner, ok := store.MagnetPartner(a.ID)
	require.True(t, ok)
	assert.Equal(t, b.ID, partner)

	partner, ok = store.MagnetPartner(b.ID)
	require.True(t, ok)
	assert.Equal(t, a.ID, partner)

	// Re-pairing a with c dissolves a-b on both sides.
	require.NoError(t, store.SetMagnetPair(ctx, a.ID, c.ID))

	_, ok = store.MagnetPartner(b.ID)
	assert.False(t, ok)

	bNode, _ := store.Node(b.ID)
	assert.Empty(t, bNode.MagnetPartnerID)

	aNode, _ := store.Node(a.ID)
	assert.Equal(t, c.ID, aNode.MagnetPartnerID)

	err := store.SetMagnetPair(ctx, a.ID, a.ID)
	assert.True(t, models.IsValidationError(err))
}

func TestRemoveNodeClearsMagnetPartner(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a, _ := store.AddNode(ctx, NodeInput{Name: "A"})
	b, _ := store.AddNode(ctx, NodeInput{Name: "B"})

	require.NoError(t, store.SetMagnetPair(ctx, a.ID, b.ID))
	require.True(t, store.RemoveNode(ctx, a.ID, false))

	_, ok := store.MagnetPartner(b.ID)
	assert.False(t, ok)

	bNode, _ := store.Node(b.ID)
	assert.Empty(t, bNode.MagnetPartnerID)
}

func TestExportImportRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a, err := store.AddNode(ctx, NodeInput{Name: "A", X: 10, Y: 20})
	require.NoError(t, err)
	b, err := store.AddNode(ctx, NodeInput{Name: "B", X: 400, Y: 20})
	require.NoError(t, err)

	_, err = store.AddLink(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = store.CreateGroup(ctx, []string{a.ID, b.ID}, GroupInput{Name: "Pair"})
	require.NoError(t, err)

	_, err = store.AddAnnotation(ctx, AnnotationInput{Type: models.AnnotationTypeText, Text: "note", X: 5, Y: 5})
	require.NoError(t, err)

	require.NoError(t, store.SetMagnetPair(ctx, a.ID, b.ID))

	doc := store.Export()

	restored, _ := newTestStore(t)
	require.NoError(t, restored.Import(ctx, doc, ImportOptions{SkipInputReconcile: true}))

	assert.Equal(t, doc, restored.Export())

	partner, ok := restored.MagnetPartner(a.ID)
	require.True(t, ok)
	assert.Equal(t, b.ID, partner)

	// Counters resume past the imported ids.
	fresh, err := restored.AddNode(ctx, NodeInput{Name: "C"})
	require.NoError(t, err)
	assert.Equal(t, "node-3", fresh.ID)
}

func TestImportRejectsUnknownLinkEndpointsAtomically(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	existing, err := store.AddNode(ctx, NodeInput{Name: "Keep"})
	require.NoError(t, err)

	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes, &models.Node{ID: "node-9", Name: "N", Type: models.NodeTypeDefault})
	doc.Links = append(doc.Links, &models.Link{Source: "node-9", Target: "ghost"})

	err = store.Import(ctx, doc, ImportOptions{SkipInputReconcile: true})
	assert.True(t, models.IsValidationError(err))

	// Previous state survives a failed import.
	_, ok := store.Node(existing.ID)
	assert.True(t, ok)

	_, ok = store.Node("node-9")
	assert.False(t, ok)
}

func TestImportDropsDuplicateLinkPairs(t *testing.T) {
	store, _ := newTestStore(t)

	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		&models.Node{ID: "node-1", Name: "A", Type: models.NodeTypeDefault},
		&models.Node{ID: "node-2", Name: "B", Type: models.NodeTypeDefault},
	)
	doc.Links = append(doc.Links,
		&models.Link{Source: "node-1", Target: "node-2"},
		&models.Link{Source: "node-2", Target: "node-1"},
	)

	require.NoError(t, store.Import(context.Background(), doc, ImportOptions{SkipInputReconcile: true}))
	assert.Equal(t, 1, len(store.Links()))
}

func TestImportDropsNonMutualMagnetPairings(t *testing.T) {
	store, _ := newTestStore(t)

	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		&models.Node{ID: "node-1", Name: "A", Type: models.NodeTypeDefault, MagnetPartnerID: "node-2"},
		&models.Node{ID: "node-2", Name: "B", Type: models.NodeTypeDefault, MagnetPartnerID: "node-3"},
		&models.Node{ID: "node-3", Name: "C", Type: models.NodeTypeDefault},
	)

	require.NoError(t, store.Import(context.Background(), doc, ImportOptions{SkipInputReconcile: true}))

	_, ok := store.MagnetPartner("node-1")
	assert.False(t, ok)

	n1, _ := store.Node("node-1")
	assert.Empty(t, n1.MagnetPartnerID)
}

func TestImportPrunesDuplicateCompanions(t *testing.T) {
	store, _ := newTestStore(t)

	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes,
		&models.Node{ID: "node-1", Name: "Calc", Type: models.NodeTypePythonFile, PythonFile: "add.py"},
		&models.Node{ID: "node-2", Name: "Calc inputs", Type: models.NodeTypeInput, TargetNodeID: "node-1", SkipInputCheck: true},
		&models.Node{ID: "node-3", Name: "Calc inputs", Type: models.NodeTypeInput, TargetNodeID: "node-1", SkipInputCheck: true},
	)

	require.NoError(t, store.Import(context.Background(), doc, ImportOptions{}))
	store.Wait()

	companions := 0

	for _, n := range store.Nodes() {
		if n.IsInputNode() {
			companions++
		}
	}

	assert.Equal(t, 1, companions)
}

func TestUpdateLinkRefusesInputConnections(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	target, err := store.AddNode(ctx, NodeInput{
		Name:       "Calc",
		Type:       models.NodeTypePythonFile,
		PythonFile: "add.py",
	})
	require.NoError(t, err)
	store.Wait()

	var companion *models.Node

	for _, n := range store.Nodes() {
		if n.IsInputNode() {
			companion = n
		}
	}

	require.NotNil(t, companion)

	style := models.LinkStyleDashed
	assert.False(t, store.UpdateLink(ctx, companion.ID, target.ID, LinkUpdate{Style: &style}))
	assert.False(t, store.RemoveLink(ctx, companion.ID, target.ID))
}

func TestAnnotationDefaultsAndUpdate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	annotation, err := store.AddAnnotation(ctx, AnnotationInput{
		Type: models.AnnotationTypeText,
		Text: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "annotation-1", annotation.ID)
	assert.Equal(t, 14, annotation.FontSize)

	text := "updated"
	assert.True(t, store.UpdateAnnotation(ctx, annotation.ID, AnnotationUpdate{Text: &text}))

	got, ok := store.Annotation(annotation.ID)
	require.True(t, ok)
	assert.Equal(t, "updated", got.Text)

	assert.True(t, store.RemoveAnnotation(ctx, annotation.ID))
	assert.False(t, store.RemoveAnnotation(ctx, annotation.ID))
}

func TestIDAllocatorObserve(t *testing.T) {
	ids := NewIDAllocator()

	ids.Observe("node-41")
	ids.Observe("node-7")
	ids.Observe("not-a-number-x")
	ids.Observe("plain")

	assert.Equal(t, "node-42", ids.Next("node"))
	assert.Equal(t, "group-1", ids.Next("group"))
}

func TestRenameRecomputesWidth(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	node, err := store.AddNode(ctx, NodeInput{Name: "Tiny"})
	require.NoError(t, err)

	longName := "A significantly longer label for this node"
	ok, err := store.UpdateNode(ctx, node.ID, NodeUpdate{Name: &longName})
	require.NoError(t, err)
	require.True(t, ok)

	got, _ := store.Node(node.ID)
	assert.Equal(t, models.NodeWidth(longName, got.Type), got.Width)
}
