package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowdeck/pkg/models"
	"github.com/dukex/flowdeck/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	p, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	return p
}

func docWithNodes(count int) *models.Document {
	doc := models.NewDocument()

	for i := 0; i < count; i++ {
		doc.Nodes = append(doc.Nodes, &models.Node{
			ID:   "node-" + string(rune('a'+i)),
			Name: "Node",
			Type: models.NodeTypeDefault,
		})
	}

	return doc
}

func TestCreateGetAndList(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	doc, err := p.Flowcharts().Create(ctx, "demo")
	require.NoError(t, err)
	assert.Empty(t, doc.Nodes)

	_, err = p.Flowcharts().Create(ctx, "demo")
	assert.True(t, persistence.IsFlowchartExists(err))

	got, err := p.Flowcharts().Get(ctx, "demo")
	require.NoError(t, err)
	assert.Empty(t, got.Nodes)

	_, err = p.Flowcharts().Get(ctx, "missing")
	assert.True(t, persistence.IsFlowchartNotFound(err))

	infos, err := p.Flowcharts().List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "demo", infos[0].Name)
	assert.Equal(t, 0, infos[0].NodeCount)
}

func TestSaveRoundTripsDocument(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	doc := docWithNodes(2)
	doc.Links = append(doc.Links, &models.Link{Source: doc.Nodes[0].ID, Target: doc.Nodes[1].ID})

	require.NoError(t, p.Flowcharts().Save(ctx, "demo", doc, persistence.SaveOptions{}))

	got, err := p.Flowcharts().Get(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestSaveTakesBackupBeforeOverwrite(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, p.Flowcharts().Save(ctx, "demo", docWithNodes(3), persistence.SaveOptions{}))
	require.NoError(t, p.Flowcharts().Save(ctx, "demo", docWithNodes(4), persistence.SaveOptions{}))

	backups, err := p.Backups().Backups(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, 3, backups[0].NodeCount)

	restored, err := p.Backups().Backup(ctx, "demo", backups[0].ID)
	require.NoError(t, err)
	assert.Len(t, restored.Nodes, 3)
}

func TestSaveRefusesDestructiveChange(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, p.Flowcharts().Save(ctx, "demo", docWithNodes(10), persistence.SaveOptions{}))

	err := p.Flowcharts().Save(ctx, "demo", docWithNodes(2), persistence.SaveOptions{})
	require.Error(t, err)
	assert.True(t, persistence.IsDestructiveChange(err))

	// The stored document is untouched.
	got, err := p.Flowcharts().Get(ctx, "demo")
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 10)

	// Force overrides the guard.
	require.NoError(t, p.Flowcharts().Save(ctx, "demo", docWithNodes(2), persistence.SaveOptions{Force: true}))

	got, err = p.Flowcharts().Get(ctx, "demo")
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 2)
}

func TestSmallFlowchartsSkipTheGuard(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, p.Flowcharts().Save(ctx, "demo", docWithNodes(4), persistence.SaveOptions{}))
	require.NoError(t, p.Flowcharts().Save(ctx, "demo", docWithNodes(0), persistence.SaveOptions{}))
}

func TestRenameMovesFlowchartAndBackups(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, p.Flowcharts().Save(ctx, "old", docWithNodes(3), persistence.SaveOptions{}))
	require.NoError(t, p.Flowcharts().Save(ctx, "old", docWithNodes(4), persistence.SaveOptions{}))

	require.NoError(t, p.Flowcharts().Rename(ctx, "old", "new"))

	_, err := p.Flowcharts().Get(ctx, "old")
	assert.True(t, persistence.IsFlowchartNotFound(err))

	got, err := p.Flowcharts().Get(ctx, "new")
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 4)

	backups, err := p.Backups().Backups(ctx, "new")
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	err = p.Flowcharts().Rename(ctx, "missing", "other")
	assert.True(t, persistence.IsFlowchartNotFound(err))

	require.NoError(t, p.Flowcharts().Save(ctx, "taken", docWithNodes(1), persistence.SaveOptions{}))
	err = p.Flowcharts().Rename(ctx, "new", "taken")
	assert.True(t, persistence.IsFlowchartExists(err))
}

func TestDelete(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, p.Flowcharts().Save(ctx, "demo", docWithNodes(1), persistence.SaveOptions{}))
	require.NoError(t, p.Flowcharts().Delete(ctx, "demo"))

	err := p.Flowcharts().Delete(ctx, "demo")
	assert.True(t, persistence.IsFlowchartNotFound(err))
}

func TestInvalidNamesAreRejected(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	for _, name := range []string{"", "..", "a/b", `a\b`} {
		_, err := p.Flowcharts().Create(ctx, name)
		assert.Error(t, err, "name %q", name)
	}
}

func TestBackupPruneKeepsNewest(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Flowcharts().Save(ctx, "demo", docWithNodes(i+1), persistence.SaveOptions{}))
		time.Sleep(2 * time.Millisecond)
	}

	backups, err := p.Backups().Backups(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, backups, 3)

	require.NoError(t, p.Backups().Prune(ctx, "demo", 1))

	backups, err = p.Backups().Backups(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, backups, 1)

	// The survivor is the most recent snapshot.
	assert.Equal(t, 3, backups[0].NodeCount)
}

func TestExecutionHistory(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	record := &persistence.ExecutionRecord{
		ID:        "exec-1",
		Flowchart: "demo",
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Status:    "completed",
		Results: map[string]models.NodeResult{
			"node-1": {NodeID: "node-1", Success: true, Output: "ok"},
		},
		VariableState: map[string]any{"total": "42"},
		Snapshot:      docWithNodes(2),
	}

	require.NoError(t, p.History().SaveExecution(ctx, record))

	got, err := p.History().Execution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, record.Flowchart, got.Flowchart)
	assert.Equal(t, record.Results, got.Results)
	assert.Len(t, got.Snapshot.Nodes, 2)

	other := &persistence.ExecutionRecord{
		ID:        "exec-2",
		Flowchart: "other",
		StartedAt: time.Now().UTC(),
		Status:    "failed",
	}
	require.NoError(t, p.History().SaveExecution(ctx, other))

	records, err := p.History().Executions(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "exec-1", records[0].ID)

	all, err := p.History().Executions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, p.History().DeleteExecution(ctx, "exec-1"))

	_, err = p.History().Execution(ctx, "exec-1")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestHealthCheck(t *testing.T) {
	p := newTestPersistence(t)
	assert.NoError(t, p.HealthCheck(context.Background()))
	assert.NoError(t, p.Close(context.Background()))
}
