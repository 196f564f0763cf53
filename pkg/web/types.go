// Package web provides HTTP request and response types for the flowchart API.
package web

import (
	"time"

	"github.com/dukex/flowdeck/pkg/models"
	"github.com/dukex/flowdeck/pkg/persistence"
)

// CreateFlowchartRequest represents the request body for creating a flowchart.
type CreateFlowchartRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// RenameFlowchartRequest represents the request body for renaming a flowchart.
type RenameFlowchartRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// SaveFlowchartRequest represents the request body for saving a flowchart
// document. Force skips the destructive-change guard after the user confirmed
// the conflict.
type SaveFlowchartRequest struct {
	Document *models.Document `json:"document" validate:"required"`
	Force    bool             `json:"force"`
}

// AnalyzeRequest represents the request body for analyzing a python function.
type AnalyzeRequest struct {
	PythonFile string `json:"python_file" validate:"required"`
}

// SaveExecutionRequest represents the request body for recording a finished
// run into history.
type SaveExecutionRequest struct {
	Flowchart       string                       `json:"flowchart"       validate:"required"`
	Status          string                       `json:"status"          validate:"required,oneof=completed failed stopped error"`
	StartedAt       time.Time                    `json:"started_at"`
	FinishedAt      time.Time                    `json:"finished_at"`
	Results         map[string]models.NodeResult `json:"results"`
	PersistedValues map[string]any               `json:"persisted_values,omitempty"`
	VariableState   map[string]any               `json:"variable_state,omitempty"`
	Snapshot        *models.Document             `json:"snapshot,omitempty"`
}

// PruneBackupsRequest represents the request body for pruning old backups.
type PruneBackupsRequest struct {
	Keep int `json:"keep" validate:"min=0"`
}

// FlowchartResponse is the document of one open flowchart.
type FlowchartResponse struct {
	Name     string           `json:"name"`
	Document *models.Document `json:"document"`
}

// RestoreExecutionResponse carries the restored record back to the client so
// it can rebuild run state.
type RestoreExecutionResponse struct {
	Record *persistence.ExecutionRecord `json:"record"`
}
