// Package persistence provides the data storage abstraction layer for
// flowcharts, execution history and backups.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/flowdeck/pkg/models"
)

// FlowchartInfo summarizes a stored flowchart for listings.
type FlowchartInfo struct {
	Name      string    `json:"name"`
	NodeCount int       `json:"node_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BackupInfo summarizes a stored backup snapshot.
type BackupInfo struct {
	ID        string    `json:"id"`
	Flowchart string    `json:"flowchart"`
	NodeCount int       `json:"node_count"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveOptions modify a flowchart save.
type SaveOptions struct {
	// Force skips the destructive-change guard. Set after the user confirmed
	// the save through the conflict decision flow.
	Force bool
	// SkipBackup suppresses the pre-save backup snapshot.
	SkipBackup bool
}

// FlowchartRepository stores flowchart documents keyed by name.
type FlowchartRepository interface {
	List(ctx context.Context) ([]FlowchartInfo, error)
	Get(ctx context.Context, name string) (*models.Document, error)
	Create(ctx context.Context, name string) (*models.Document, error)
	// Save overwrites the stored document, taking a backup of the previous
	// version first. Without Force it refuses saves the destructive-change
	// guard flags, returning a *DestructiveChangeError.
	Save(ctx context.Context, name string, doc *models.Document, opts SaveOptions) error
	Rename(ctx context.Context, oldName, newName string) error
	Delete(ctx context.Context, name string) error
}

// ExecutionRecord is one finished run: per-node results plus the variable
// state and graph snapshot needed to resume from it later.
type ExecutionRecord struct {
	ID              string                       `json:"id"`
	Flowchart       string                       `json:"flowchart"`
	StartedAt       time.Time                    `json:"started_at"`
	FinishedAt      time.Time                    `json:"finished_at"`
	Status          string                       `json:"status"`
	Results         map[string]models.NodeResult `json:"results"`
	PersistedValues map[string]any               `json:"persisted_values,omitempty"`
	VariableState   map[string]any               `json:"variable_state,omitempty"`
	Snapshot        *models.Document             `json:"snapshot,omitempty"`
}

// HistoryRepository stores execution records.
type HistoryRepository interface {
	SaveExecution(ctx context.Context, record *ExecutionRecord) error
	Execution(ctx context.Context, id string) (*ExecutionRecord, error)
	Executions(ctx context.Context, flowchart string) ([]*ExecutionRecord, error)
	DeleteExecution(ctx context.Context, id string) error
}

// BackupRepository stores pre-save snapshots of flowchart documents.
type BackupRepository interface {
	Backups(ctx context.Context, flowchart string) ([]BackupInfo, error)
	Backup(ctx context.Context, flowchart, id string) (*models.Document, error)
	Delete(ctx context.Context, flowchart, id string) error
	// Prune deletes all but the newest keep backups for the flowchart.
	Prune(ctx context.Context, flowchart string, keep int) error
}

// Persistence aggregates the repositories of one storage provider.
type Persistence interface {
	Flowcharts() FlowchartRepository
	History() HistoryRepository
	Backups() BackupRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
