package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/flowdeck/pkg/models"
	"github.com/dukex/flowdeck/pkg/persistence"
)

// ErrFlowchartNotFound is returned when a flowchart is not found.
var ErrFlowchartNotFound = persistence.ErrFlowchartNotFound

// Flowchart exposes the library-level operations on stored flowcharts:
// listing, lifecycle, execution history and backups. Per-session document
// editing goes through Manager instead.
type Flowchart struct {
	persistence persistence.Persistence
}

// NewFlowchart creates a new flowchart service.
func NewFlowchart(persistence persistence.Persistence) *Flowchart {
	return &Flowchart{
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (f *Flowchart) HealthCheck(ctx context.Context) (string, bool) {
	if f.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := f.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func validateName(op, name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError(op, "name_required", "flowchart name is required", ErrNameRequired)
	}

	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return NewValidationError(op, "name_invalid", "flowchart name contains invalid characters", ErrNameInvalid)
	}

	return nil
}

// List returns summaries of every stored flowchart.
func (f *Flowchart) List(ctx context.Context) ([]persistence.FlowchartInfo, error) {
	infos, err := f.persistence.Flowcharts().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list flowcharts: %w", err)
	}

	return infos, nil
}

// Create creates a new empty flowchart under the given name.
func (f *Flowchart) Create(ctx context.Context, name string) (*models.Document, error) {
	if err := validateName("create", name); err != nil {
		return nil, err
	}

	return f.persistence.Flowcharts().Create(ctx, name)
}

// Rename moves a flowchart and its backups to a new name.
func (f *Flowchart) Rename(ctx context.Context, oldName, newName string) error {
	if err := validateName("rename", newName); err != nil {
		return err
	}

	if oldName == newName {
		return NewValidationError("rename", "same_name", "rename target matches the current name", ErrSameName)
	}

	return f.persistence.Flowcharts().Rename(ctx, oldName, newName)
}

// Delete removes a flowchart.
func (f *Flowchart) Delete(ctx context.Context, name string) error {
	return f.persistence.Flowcharts().Delete(ctx, name)
}

// Execution returns one stored execution record.
func (f *Flowchart) Execution(ctx context.Context, id string) (*persistence.ExecutionRecord, error) {
	return f.persistence.History().Execution(ctx, id)
}

// Executions returns the execution history of one flowchart, newest first.
func (f *Flowchart) Executions(ctx context.Context, flowchart string) ([]*persistence.ExecutionRecord, error) {
	return f.persistence.History().Executions(ctx, flowchart)
}

// DeleteExecution removes one execution record.
func (f *Flowchart) DeleteExecution(ctx context.Context, id string) error {
	return f.persistence.History().DeleteExecution(ctx, id)
}

// ClearHistory removes every execution record of one flowchart.
func (f *Flowchart) ClearHistory(ctx context.Context, flowchart string) (int, error) {
	records, err := f.persistence.History().Executions(ctx, flowchart)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}

	for _, record := range records {
		if err := f.persistence.History().DeleteExecution(ctx, record.ID); err != nil {
			return 0, fmt.Errorf("clear history: %w", err)
		}
	}

	return len(records), nil
}

// ClearAllHistory removes every execution record across all flowcharts.
func (f *Flowchart) ClearAllHistory(ctx context.Context) (int, error) {
	return f.ClearHistory(ctx, "")
}

// Backups returns the backup snapshots of one flowchart, newest first.
func (f *Flowchart) Backups(ctx context.Context, flowchart string) ([]persistence.BackupInfo, error) {
	return f.persistence.Backups().Backups(ctx, flowchart)
}

// DeleteBackup removes one backup snapshot.
func (f *Flowchart) DeleteBackup(ctx context.Context, flowchart, id string) error {
	return f.persistence.Backups().Delete(ctx, flowchart, id)
}

// PruneBackups deletes all but the newest keep backups of one flowchart.
func (f *Flowchart) PruneBackups(ctx context.Context, flowchart string, keep int) error {
	if keep < 0 {
		return NewValidationError("prune_backups", "keep_negative", "backup keep count cannot be negative", ErrKeepNegative)
	}

	return f.persistence.Backups().Prune(ctx, flowchart, keep)
}
