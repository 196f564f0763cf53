// Package gateway orchestrates the flow between the in-memory graph and the
// persistence layer: debounced autosaves, explicit saves with the
// destructive-change decision flow, loads, and backup or history restores.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/flowdeck/pkg/eventbus"
	"github.com/dukex/flowdeck/pkg/events"
	"github.com/dukex/flowdeck/pkg/graph"
	"github.com/dukex/flowdeck/pkg/models"
	"github.com/dukex/flowdeck/pkg/otelhelper"
	"github.com/dukex/flowdeck/pkg/persistence"
)

const (
	defaultDebounce   = 2 * time.Second
	defaultBackupKeep = 10
)

// SessionSelection is the slice of the selection model the gateway refreshes
// after bulk loads.
type SessionSelection interface {
	SetFlowchart(name string)
	Validate(doc *models.Document)
}

// Gateway ties one editor session's graph store to storage.
type Gateway struct {
	logger    *slog.Logger
	store     *graph.Store
	selection SessionSelection
	persist   persistence.Persistence
	publisher eventbus.EventPublisher
	tracer    trace.Tracer

	debounce   time.Duration
	backupKeep int

	mu    sync.Mutex
	timer *time.Timer
	cron  *cron.Cron
}

func NewGateway(
	logger *slog.Logger,
	store *graph.Store,
	selection SessionSelection,
	persist persistence.Persistence,
	publisher eventbus.EventPublisher,
	tracer trace.Tracer,
) *Gateway {
	if tracer == nil {
		tracer = otel.Tracer("flowdeck/gateway")
	}

	return &Gateway{
		logger:     logger,
		store:      store,
		selection:  selection,
		persist:    persist,
		publisher:  publisher,
		tracer:     tracer,
		debounce:   defaultDebounce,
		backupKeep: defaultBackupKeep,
	}
}

// SetDebounce overrides the autosave debounce interval. Tests use short
// intervals.
func (g *Gateway) SetDebounce(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debounce = d
}

// SetBackupKeep overrides how many backups per flowchart the retention
// sweep keeps.
func (g *Gateway) SetBackupKeep(keep int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if keep > 0 {
		g.backupKeep = keep
	}
}

// ScheduleAutosave implements graph.AutosaveScheduler. Every mutation resets
// the debounce window; only the trailing edge saves.
func (g *Gateway) ScheduleAutosave() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
	}

	g.timer = time.AfterFunc(g.debounce, func() {
		if err := g.Save(context.Background(), true, false); err != nil {
			g.logger.Warn("autosave failed", "error", err)
		}
	})
}

// Flush cancels any pending autosave and saves immediately if one was
// pending. Shutdown paths call it so no debounced work is lost.
func (g *Gateway) Flush(ctx context.Context) error {
	g.mu.Lock()
	pending := g.timer != nil && g.timer.Stop()
	g.timer = nil
	g.mu.Unlock()

	if !pending {
		return nil
	}

	return g.Save(ctx, true, false)
}

func (g *Gateway) publish(ctx context.Context, event eventbus.Event) {
	if g.publisher == nil {
		return
	}

	if err := g.publisher.Publish(ctx, g.store.Flowchart(), event); err != nil {
		g.logger.WarnContext(ctx, "failed to publish gateway event",
			"event_type", event.GetType(), "error", err)
	}
}

// Save exports the current graph and writes it through the flowchart
// repository. A destructive-change refusal is surfaced as an event and
// returned so the caller can offer the confirm-or-cancel decision; retrying
// with force overrides the guard.
func (g *Gateway) Save(ctx context.Context, isAutosave, force bool) error {
	name := g.store.Flowchart()

	ctx, span := otelhelper.StartSpan(ctx, g.tracer, "gateway.save",
		attribute.String(otelhelper.FlowchartKey, name),
		attribute.Bool(otelhelper.AutosaveKey, isAutosave),
		attribute.Bool(otelhelper.ForceKey, force),
	)
	defer span.End()

	doc := g.store.Export()
	span.SetAttributes(attribute.Int(otelhelper.NodeCountKey, len(doc.Nodes)))

	err := g.persist.Flowcharts().Save(ctx, name, doc, persistence.SaveOptions{Force: force})
	if err != nil {
		otelhelper.SetError(span, err)

		var destructive *persistence.DestructiveChangeError

		if errors.As(err, &destructive) {
			g.publish(ctx, events.DestructiveChangeDetected{
				BaseEvent:     events.NewBaseEvent(events.DestructiveChangeDetectedEvent, name),
				ExistingNodes: destructive.ExistingNodes,
				IncomingNodes: destructive.IncomingNodes,
				Threshold:     destructive.Threshold,
			})

			return err
		}

		g.publish(ctx, events.SaveError{
			BaseEvent: events.NewBaseEvent(events.SaveErrorEvent, name),
			Error:     err.Error(),
		})

		return err
	}

	g.publish(ctx, events.DataSaved{
		BaseEvent:  events.NewBaseEvent(events.DataSavedEvent, name),
		IsAutosave: isAutosave,
		NodeCount:  len(doc.Nodes),
	})

	return nil
}

// Load replaces the session's graph with the named flowchart from storage.
func (g *Gateway) Load(ctx context.Context, name string) error {
	ctx, span := otelhelper.StartSpan(ctx, g.tracer, "gateway.load",
		attribute.String(otelhelper.FlowchartKey, name))
	defer span.End()

	doc, err := g.persist.Flowcharts().Get(ctx, name)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	g.store.SetFlowchart(name)

	if g.selection != nil {
		g.selection.SetFlowchart(name)
	}

	if err := g.store.Import(ctx, doc, graph.ImportOptions{}); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if g.selection != nil {
		g.selection.Validate(g.store.Export())
	}

	g.publish(ctx, events.DataLoaded{
		BaseEvent: events.NewBaseEvent(events.DataLoadedEvent, name),
		NodeCount: len(doc.Nodes),
	})

	return nil
}

// RestoreBackup loads a backup snapshot into the session and persists it as
// the current version. The restore is explicit user intent, so the
// destructive-change guard does not apply.
func (g *Gateway) RestoreBackup(ctx context.Context, backupID string) error {
	name := g.store.Flowchart()

	ctx, span := otelhelper.StartSpan(ctx, g.tracer, "gateway.restore_backup",
		attribute.String(otelhelper.FlowchartKey, name),
		attribute.String(otelhelper.BackupIDKey, backupID),
	)
	defer span.End()

	doc, err := g.persist.Backups().Backup(ctx, name, backupID)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if err := g.store.Import(ctx, doc, graph.ImportOptions{}); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if g.selection != nil {
		g.selection.Validate(g.store.Export())
	}

	g.publish(ctx, events.BackupRestored{
		BaseEvent: events.NewBaseEvent(events.BackupRestoredEvent, name),
		BackupID:  backupID,
	})

	return g.Save(ctx, false, true)
}

// RestoreExecution loads the graph snapshot of a past run and returns the
// record so the caller can seed variable state for a resume. The snapshot's
// node set is frozen: no input-node reconciliation runs.
func (g *Gateway) RestoreExecution(ctx context.Context, executionID string) (*persistence.ExecutionRecord, error) {
	ctx, span := otelhelper.StartSpan(ctx, g.tracer, "gateway.restore_execution",
		attribute.String(otelhelper.ExecutionIDKey, executionID))
	defer span.End()

	record, err := g.persist.History().Execution(ctx, executionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if record.Snapshot != nil {
		if err := g.store.Import(ctx, record.Snapshot, graph.ImportOptions{SkipInputReconcile: true}); err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}

		if g.selection != nil {
			g.selection.Validate(g.store.Export())
		}
	}

	return record, nil
}

// RecordRun persists a finished execution with the current graph snapshot.
func (g *Gateway) RecordRun(ctx context.Context, record *persistence.ExecutionRecord) error {
	ctx, span := otelhelper.StartSpan(ctx, g.tracer, "gateway.record_run",
		attribute.String(otelhelper.ExecutionIDKey, record.ID),
		attribute.String(otelhelper.FlowchartKey, record.Flowchart),
	)
	defer span.End()

	if record.Snapshot == nil {
		record.Snapshot = g.store.Export()
	}

	if err := g.persist.History().SaveExecution(ctx, record); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

// StartBackupRetention prunes old backups for every flowchart on the given
// cron schedule, e.g. "@hourly".
func (g *Gateway) StartBackupRetention(schedule string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cron != nil {
		g.cron.Stop()
	}

	g.cron = cron.New()

	_, err := g.cron.AddFunc(schedule, func() {
		ctx := context.Background()

		infos, err := g.persist.Flowcharts().List(ctx)
		if err != nil {
			g.logger.Warn("backup retention listing failed", "error", err)

			return
		}

		for _, info := range infos {
			if err := g.persist.Backups().Prune(ctx, info.Name, g.backupKeep); err != nil {
				g.logger.Warn("backup retention prune failed",
					"flowchart", info.Name, "error", err)
			}
		}
	})
	if err != nil {
		return err
	}

	g.cron.Start()

	return nil
}

// Close stops the retention scheduler and flushes any pending autosave.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.cron != nil {
		g.cron.Stop()
		g.cron = nil
	}
	g.mu.Unlock()

	return g.Flush(ctx)
}
