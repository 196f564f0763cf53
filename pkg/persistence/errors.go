// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowchartNotFound indicates no flowchart exists with the given name.
	ErrFlowchartNotFound = errors.New("flowchart not found")

	// ErrFlowchartExists indicates a flowchart with the same name already exists.
	ErrFlowchartExists = errors.New("flowchart already exists")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrBackupNotFound indicates a backup snapshot was not found.
	ErrBackupNotFound = errors.New("backup not found")
)

// FlowchartError wraps flowchart-related errors with operation context.
type FlowchartError struct {
	Op        string // Operation being performed (e.g., "Get", "Save", "Delete")
	Flowchart string // Flowchart name
	Err       error  // Underlying error
}

func (e *FlowchartError) Error() string {
	return fmt.Sprintf("%s operation failed for flowchart %s: %v", e.Op, e.Flowchart, e.Err)
}

func (e *FlowchartError) Unwrap() error {
	return e.Err
}

func (e *FlowchartError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowchartError creates a new flowchart error with context.
func NewFlowchartError(op, flowchart string, err error) *FlowchartError {
	return &FlowchartError{
		Op:        op,
		Flowchart: flowchart,
		Err:       err,
	}
}

// DestructiveChangeGuard flags saves that would silently discard a large part
// of an existing flowchart, typically after the editor lost its state. A save
// is destructive when the stored document already has at least MinNodes nodes
// and the incoming document carries fewer than Ratio of them.
type DestructiveChangeGuard struct {
	Ratio    float64
	MinNodes int
}

// DefaultGuard is the guard configuration providers use unless overridden.
var DefaultGuard = DestructiveChangeGuard{Ratio: 0.5, MinNodes: 5}

// Check returns a *DestructiveChangeError when the save trips the guard.
func (g DestructiveChangeGuard) Check(existing, incoming int) error {
	if existing < g.MinNodes {
		return nil
	}

	if float64(incoming) >= float64(existing)*g.Ratio {
		return nil
	}

	return &DestructiveChangeError{
		ExistingNodes: existing,
		IncomingNodes: incoming,
		Threshold:     g.Ratio,
	}
}

// DestructiveChangeError is a decision point, not a failure: the caller
// surfaces it to the user, who may retry the save with Force.
type DestructiveChangeError struct {
	ExistingNodes int
	IncomingNodes int
	Threshold     float64
}

func (e *DestructiveChangeError) Error() string {
	return fmt.Sprintf("refusing to overwrite %d nodes with %d: node count dropped below %.0f%% of the stored flowchart",
		e.ExistingNodes, e.IncomingNodes, e.Threshold*100)
}

// IsDestructiveChange checks if an error is the destructive-change guard.
func IsDestructiveChange(err error) bool {
	var destructive *DestructiveChangeError

	return errors.As(err, &destructive)
}

// IsFlowchartNotFound checks if an error indicates a missing flowchart.
func IsFlowchartNotFound(err error) bool {
	return errors.Is(err, ErrFlowchartNotFound)
}

// IsFlowchartExists checks if an error indicates a name collision.
func IsFlowchartExists(err error) bool {
	return errors.Is(err, ErrFlowchartExists)
}

// IsExecutionNotFound checks if an error indicates a missing execution record.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsBackupNotFound checks if an error indicates a missing backup.
func IsBackupNotFound(err error) bool {
	return errors.Is(err, ErrBackupNotFound)
}
