package models

// LinkType marks links that are managed by the store rather than the user.
type LinkType string

const (
	// LinkTypeInputConnection ties an input node to the python node it feeds.
	// These links are created and removed exclusively by the graph store and
	// are never selectable.
	LinkTypeInputConnection LinkType = "input_connection"
)

// LinkStyle values are rendering hints persisted with the link.
const (
	LinkStyleDashed = "dashed"
)

// LinkCondition carries the branch condition attached to an if -> python edge.
type LinkCondition struct {
	Expression string `json:"expression"`
	Branch     string `json:"branch,omitempty"` // "true" or "false"
}

// Link is a directed edge between two nodes. Uniqueness is enforced on the
// unordered endpoint pair: at most one link exists between any two nodes
// regardless of direction.
type Link struct {
	Source    string         `json:"source" validate:"required"`
	Target    string         `json:"target" validate:"required"`
	Type      LinkType       `json:"type,omitempty"`
	Style     string         `json:"style,omitempty"`
	Condition *LinkCondition `json:"condition,omitempty"`
}

// Selectable reports whether the user may select this link. Input connection
// links are store-managed and always non-selectable.
func (l *Link) Selectable() bool {
	return l.Type != LinkTypeInputConnection
}

// Touches reports whether the link has the given node as either endpoint.
func (l *Link) Touches(nodeID string) bool {
	return l.Source == nodeID || l.Target == nodeID
}

// SamePair reports whether the link connects the given unordered pair.
func (l *Link) SamePair(a, b string) bool {
	return (l.Source == a && l.Target == b) || (l.Source == b && l.Target == a)
}

// Clone returns a deep copy of the link.
func (l *Link) Clone() *Link {
	dup := *l

	if l.Condition != nil {
		cond := *l.Condition
		dup.Condition = &cond
	}

	return &dup
}

// PairKey returns the canonical lookup key for an unordered endpoint pair.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}

	return a + "|" + b
}
