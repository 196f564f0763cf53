package gateway

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowdeck/pkg/analyzer"
	"github.com/dukex/flowdeck/pkg/eventbus"
	"github.com/dukex/flowdeck/pkg/events"
	"github.com/dukex/flowdeck/pkg/graph"
	"github.com/dukex/flowdeck/pkg/models"
	"github.com/dukex/flowdeck/pkg/persistence"
	"github.com/dukex/flowdeck/pkg/persistence/file"
	"github.com/dukex/flowdeck/pkg/selection"
)

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

func (p *recordingPublisher) find(eventType events.EventType) (eventbus.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.events {
		if e.GetType() == eventType {
			return e, true
		}
	}

	return nil, false
}

type fixture struct {
	gateway   *Gateway
	store     *graph.Store
	selection *selection.Model
	persist   *file.Persistence
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := &recordingPublisher{}

	persist, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	store := graph.NewStore(logger, publisher, analyzer.Static{})
	store.SetFlowchart("demo")

	sel := selection.NewModel(publisher)
	sel.SetFlowchart("demo")
	store.SetSelection(sel)

	g := NewGateway(logger, store, sel, persist, publisher, nil)
	store.SetAutosave(g)

	t.Cleanup(func() { _ = g.Close(context.Background()) })

	return &fixture{gateway: g, store: store, selection: sel, persist: persist, publisher: publisher}
}

func (f *fixture) addNodes(t *testing.T, count int) {
	t.Helper()

	for i := 0; i < count; i++ {
		_, err := f.store.AddNode(context.Background(), graph.NodeInput{Name: "Node"})
		require.NoError(t, err)
	}
}

func TestSaveWritesDocumentAndEmitsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addNodes(t, 2)

	require.NoError(t, f.gateway.Save(ctx, false, false))

	doc, err := f.persist.Flowcharts().Get(ctx, "demo")
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 2)

	event, ok := f.publisher.find(events.DataSavedEvent)
	require.True(t, ok)

	saved := event.(events.DataSaved)
	assert.False(t, saved.IsAutosave)
	assert.Equal(t, 2, saved.NodeCount)
}

func TestDestructiveSaveIsRefusedThenForced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addNodes(t, 6)
	require.NoError(t, f.gateway.Save(ctx, false, false))

	for _, n := range f.store.Nodes() {
		f.store.RemoveNode(ctx, n.ID, true)
	}

	err := f.gateway.Save(ctx, false, false)
	require.Error(t, err)
	assert.True(t, persistence.IsDestructiveChange(err))

	event, ok := f.publisher.find(events.DestructiveChangeDetectedEvent)
	require.True(t, ok)

	detected := event.(events.DestructiveChangeDetected)
	assert.Equal(t, 6, detected.ExistingNodes)
	assert.Equal(t, 0, detected.IncomingNodes)

	// Stored flowchart is untouched until the user confirms.
	doc, err := f.persist.Flowcharts().Get(ctx, "demo")
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 6)

	require.NoError(t, f.gateway.Save(ctx, false, true))

	doc, err = f.persist.Flowcharts().Get(ctx, "demo")
	require.NoError(t, err)
	assert.Empty(t, doc.Nodes)
}

func TestAutosaveDebounces(t *testing.T) {
	f := newFixture(t)
	f.gateway.SetDebounce(30 * time.Millisecond)
	ctx := context.Background()

	// Rapid mutations reset the window; only the trailing edge saves.
	f.addNodes(t, 3)

	_, err := f.persist.Flowcharts().Get(ctx, "demo")
	assert.True(t, persistence.IsFlowchartNotFound(err))

	require.Eventually(t, func() bool {
		doc, err := f.persist.Flowcharts().Get(ctx, "demo")

		return err == nil && len(doc.Nodes) == 3
	}, 2*time.Second, 10*time.Millisecond)

	event, ok := f.publisher.find(events.DataSavedEvent)
	require.True(t, ok)
	assert.True(t, event.(events.DataSaved).IsAutosave)
}

func TestFlushSavesPendingAutosave(t *testing.T) {
	f := newFixture(t)
	f.gateway.SetDebounce(time.Hour)
	ctx := context.Background()

	f.addNodes(t, 1)

	require.NoError(t, f.gateway.Flush(ctx))

	doc, err := f.persist.Flowcharts().Get(ctx, "demo")
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 1)

	// Nothing pending now, so a second flush is a no-op.
	require.NoError(t, f.gateway.Flush(ctx))
}

func TestLoadReplacesGraphAndPrunesSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addNodes(t, 2)
	stale := f.store.Nodes()[0].ID
	f.selection.SelectNode(stale, false)

	doc := models.NewDocument()
	doc.Nodes = append(doc.Nodes, &models.Node{ID: "node-77", Name: "Loaded", Type: models.NodeTypeDefault})

	require.NoError(t, f.persist.Flowcharts().Save(ctx, "other", doc, persistence.SaveOptions{}))
	require.NoError(t, f.gateway.Load(ctx, "other"))

	assert.Equal(t, "other", f.store.Flowchart())

	nodes := f.store.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "node-77", nodes[0].ID)

	assert.Empty(t, f.selection.SelectedNodes())

	event, ok := f.publisher.find(events.DataLoadedEvent)
	require.True(t, ok)
	assert.Equal(t, 1, event.(events.DataLoaded).NodeCount)
}

func TestLoadMissingFlowchart(t *testing.T) {
	f := newFixture(t)

	err := f.gateway.Load(context.Background(), "missing")
	assert.True(t, persistence.IsFlowchartNotFound(err))
}

func TestRestoreBackup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addNodes(t, 3)
	require.NoError(t, f.gateway.Save(ctx, false, false))

	// Overwrite so the 3-node version becomes a backup.
	f.store.RemoveNode(ctx, f.store.Nodes()[0].ID, true)
	require.NoError(t, f.gateway.Save(ctx, false, false))

	backups, err := f.persist.Backups().Backups(ctx, "demo")
	require.NoError(t, err)
	require.NotEmpty(t, backups)

	require.NoError(t, f.gateway.RestoreBackup(ctx, backups[0].ID))

	assert.Len(t, f.store.Nodes(), 3)

	doc, err := f.persist.Flowcharts().Get(ctx, "demo")
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 3)

	_, ok := f.publisher.find(events.BackupRestoredEvent)
	assert.True(t, ok)
}

func TestRecordAndRestoreExecution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addNodes(t, 2)

	record := &persistence.ExecutionRecord{
		ID:        "exec-1",
		Flowchart: "demo",
		StartedAt: time.Now().UTC(),
		Status:    "completed",
		Results: map[string]models.NodeResult{
			"node-1": {NodeID: "node-1", Success: true},
		},
		VariableState: map[string]any{"total": 42.0},
	}

	require.NoError(t, f.gateway.RecordRun(ctx, record))

	// Mutate the live graph, then restore the snapshot.
	f.store.RemoveNode(ctx, f.store.Nodes()[0].ID, true)
	require.Len(t, f.store.Nodes(), 1)

	restored, err := f.gateway.RestoreExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, record.VariableState, restored.VariableState)
	assert.Len(t, f.store.Nodes(), 2)
}
