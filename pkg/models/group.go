package models

// MinGroupSize is the smallest number of members a group may hold. Groups
// that drop below this size are deleted by the store.
const MinGroupSize = 2

// Group is a named cluster of at least two nodes.
type Group struct {
	ID          string   `json:"id"          validate:"required"`
	Name        string   `json:"name"        validate:"required,min=1"`
	Description string   `json:"description,omitempty"`
	NodeIDs     []string `json:"nodeIds"     validate:"min=2"`
}

// Contains reports whether the node is a member of the group.
func (g *Group) Contains(nodeID string) bool {
	for _, id := range g.NodeIDs {
		if id == nodeID {
			return true
		}
	}

	return false
}

// Remove drops the node from the member list and reports whether it was
// present.
func (g *Group) Remove(nodeID string) bool {
	for i, id := range g.NodeIDs {
		if id == nodeID {
			g.NodeIDs = append(g.NodeIDs[:i], g.NodeIDs[i+1:]...)

			return true
		}
	}

	return false
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	dup := *g
	dup.NodeIDs = append([]string(nil), g.NodeIDs...)

	return &dup
}
