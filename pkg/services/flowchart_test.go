package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowdeck/pkg/persistence"
	"github.com/dukex/flowdeck/pkg/persistence/file"
	"github.com/dukex/flowdeck/pkg/services"
)

func newFlowchartService(t *testing.T) *services.Flowchart {
	t.Helper()

	persist, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = persist.Close(context.Background()) })

	return services.NewFlowchart(persist)
}

func TestFlowchartCreateValidatesName(t *testing.T) {
	svc := newFlowchartService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "")
	assert.ErrorIs(t, err, services.ErrNameRequired)

	_, err = svc.Create(ctx, "   ")
	assert.ErrorIs(t, err, services.ErrNameRequired)

	_, err = svc.Create(ctx, "a/b")
	assert.ErrorIs(t, err, services.ErrNameInvalid)

	_, err = svc.Create(ctx, "..")
	assert.ErrorIs(t, err, services.ErrNameInvalid)
}

func TestFlowchartLifecycle(t *testing.T) {
	svc := newFlowchartService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "demo")
	require.NoError(t, err)
	require.NotNil(t, doc)

	_, err = svc.Create(ctx, "demo")
	assert.True(t, persistence.IsFlowchartExists(err))

	infos, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "demo", infos[0].Name)

	require.NoError(t, svc.Delete(ctx, "demo"))

	infos, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestFlowchartRenameValidation(t *testing.T) {
	svc := newFlowchartService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "demo")
	require.NoError(t, err)

	err = svc.Rename(ctx, "demo", "demo")
	assert.ErrorIs(t, err, services.ErrSameName)

	err = svc.Rename(ctx, "demo", "")
	assert.ErrorIs(t, err, services.ErrNameRequired)

	require.NoError(t, svc.Rename(ctx, "demo", "renamed"))

	infos, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "renamed", infos[0].Name)
}

func TestFlowchartClearHistory(t *testing.T) {
	svc := newFlowchartService(t)
	ctx := context.Background()

	persist, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	svc = services.NewFlowchart(persist)

	for _, id := range []string{"run-1", "run-2"} {
		require.NoError(t, persist.History().SaveExecution(ctx, &persistence.ExecutionRecord{
			ID:        id,
			Flowchart: "demo",
			Status:    "completed",
		}))
	}

	require.NoError(t, persist.History().SaveExecution(ctx, &persistence.ExecutionRecord{
		ID:        "run-3",
		Flowchart: "other",
		Status:    "completed",
	}))

	removed, err := svc.ClearHistory(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	remaining, err := svc.Executions(ctx, "")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "run-3", remaining[0].ID)

	removed, err = svc.ClearAllHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestFlowchartPruneBackupsValidation(t *testing.T) {
	svc := newFlowchartService(t)

	err := svc.PruneBackups(context.Background(), "demo", -1)
	assert.ErrorIs(t, err, services.ErrKeepNegative)
}
