package models

// Document is the complete serialized form of a flowchart: the shape that is
// persisted, loaded and exchanged with clients. Every field enumerated on the
// entity types round-trips through it, including magnet_partner_id and
// dataSource.
type Document struct {
	Nodes       []*Node       `json:"nodes"`
	Links       []*Link       `json:"links"`
	Groups      []*Group      `json:"groups"`
	Annotations []*Annotation `json:"annotations"`
}

// NewDocument returns an empty document with non-nil collections so it
// serializes as [] rather than null.
func NewDocument() *Document {
	return &Document{
		Nodes:       []*Node{},
		Links:       []*Link{},
		Groups:      []*Group{},
		Annotations: []*Annotation{},
	}
}

// Node returns the node with the given id, or nil.
func (d *Document) Node(id string) *Node {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	dup := NewDocument()

	for _, n := range d.Nodes {
		dup.Nodes = append(dup.Nodes, n.Clone())
	}

	for _, l := range d.Links {
		dup.Links = append(dup.Links, l.Clone())
	}

	for _, g := range d.Groups {
		dup.Groups = append(dup.Groups, g.Clone())
	}

	for _, a := range d.Annotations {
		dup.Annotations = append(dup.Annotations, a.Clone())
	}

	return dup
}
