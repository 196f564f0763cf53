package models

import "time"

// NodeResult captures the outcome of a single node execution. Results live
// for one run: they are cleared when a run starts and recorded to history
// when it ends.
type NodeResult struct {
	NodeID       string         `json:"node_id"`
	Success      bool           `json:"success"`
	Output       string         `json:"output,omitempty"`
	Error        string         `json:"error,omitempty"`
	Runtime      float64        `json:"runtime"`
	Timestamp    time.Time      `json:"timestamp"`
	ReturnValue  any            `json:"return_value,omitempty"`
	FunctionName string         `json:"function_name,omitempty"`
	InputArgs    map[string]any `json:"input_args,omitempty"`
}

// Data-save node transient statuses surfaced while a run is in flight.
const (
	SaveStatusSaved = "saved"
	SaveStatusError = "error"
)
