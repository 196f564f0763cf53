// Package models defines the core domain models for the flowchart graph.
package models

import (
	"strings"
)

// NodeType is the closed set of node variants a flowchart can contain.
type NodeType string

const (
	NodeTypeDefault    NodeType = "default"     // Generic node with no special behavior
	NodeTypePythonFile NodeType = "python_file" // Executes a python function
	NodeTypeIf         NodeType = "if_node"     // Conditional branch point
	NodeTypeInput      NodeType = "input_node"  // Auto-managed companion carrying user-entered parameter values
	NodeTypeDataSave   NodeType = "data_save"   // Captures one upstream return value for persistence
	NodeTypeCallAI     NodeType = "call_ai"     // Calls an AI model
)

// KnownNodeTypes lists every valid node type.
var KnownNodeTypes = []NodeType{
	NodeTypeDefault,
	NodeTypePythonFile,
	NodeTypeIf,
	NodeTypeInput,
	NodeTypeDataSave,
	NodeTypeCallAI,
}

func IsKnownNodeType(t NodeType) bool {
	for _, known := range KnownNodeTypes {
		if t == known {
			return true
		}
	}

	return false
}

// DataSource describes which upstream return value a data_save node persists.
type DataSource struct {
	Origin   string `json:"origin"`
	Variable string `json:"variable"`
}

// Node is a placed vertex in the flowchart graph.
//
// Type-specific fields are populated only for the matching NodeType:
// input nodes carry Parameters, InputValues, TargetNodeID and SkipInputCheck;
// data_save nodes carry DataSource. MagnetPartnerID may appear on any node and
// is the authoritative side of the symmetric magnet pairing.
type Node struct {
	ID         string   `json:"id"         validate:"required"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Name       string   `json:"name"       validate:"required,min=1"`
	Type       NodeType `json:"type"       validate:"required"`
	PythonFile string   `json:"pythonFile,omitempty"`
	Width      float64  `json:"width"`
	GroupID    string   `json:"groupId,omitempty"`

	Parameters     []string          `json:"parameters,omitempty"`
	InputValues    map[string]string `json:"inputValues,omitempty"`
	TargetNodeID   string            `json:"targetNodeId,omitempty"`
	SkipInputCheck bool              `json:"skipInputCheck,omitempty"`

	DataSource *DataSource `json:"dataSource,omitempty"`

	MagnetPartnerID string `json:"magnet_partner_id,omitempty"`

	// SaveStatus is the transient runtime state of a data_save node during a
	// run. It is never serialized.
	SaveStatus string `json:"-"`
}

func (n *Node) IsPythonNode() bool {
	return n.Type == NodeTypePythonFile
}

func (n *Node) IsInputNode() bool {
	return n.Type == NodeTypeInput
}

func (n *Node) IsDataSaveNode() bool {
	return n.Type == NodeTypeDataSave
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	dup := *n

	if n.Parameters != nil {
		dup.Parameters = append([]string(nil), n.Parameters...)
	}

	if n.InputValues != nil {
		dup.InputValues = make(map[string]string, len(n.InputValues))
		for k, v := range n.InputValues {
			dup.InputValues[k] = v
		}
	}

	if n.DataSource != nil {
		ds := *n.DataSource
		dup.DataSource = &ds
	}

	return &dup
}

// NormalizePythonPath strips redundant leading path segments from a python
// file reference so the same file always stores identically. Leading "./",
// "/" and the conventional "nodes/" script prefix are removed.
func NormalizePythonPath(p string) string {
	p = strings.TrimSpace(p)

	for {
		switch {
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case strings.HasPrefix(p, "/"):
			p = p[1:]
		case strings.HasPrefix(p, "nodes/"):
			p = p[len("nodes/"):]
		default:
			return p
		}
	}
}
