package models

// NodeHeight is the fixed rendered height of every node.
const NodeHeight = 80.0

// InputNodeWidth is the fixed width of auto-created input nodes, sized to fit
// their parameter form.
const InputNodeWidth = 300.0

const (
	minNodeWidth  = 120.0
	charWidth     = 10.0
	labelPadding  = 40.0
	ifNodeWidth   = 120.0
	maxLabelWidth = 420.0
)

// NodeWidth derives a node's rendered width from its display name and type.
func NodeWidth(name string, nodeType NodeType) float64 {
	switch nodeType {
	case NodeTypeInput:
		return InputNodeWidth
	case NodeTypeIf:
		return ifNodeWidth
	}

	w := labelPadding + charWidth*float64(len([]rune(name)))
	if w < minNodeWidth {
		w = minNodeWidth
	}

	if w > maxLabelWidth {
		w = maxLabelWidth
	}

	return w
}

// Rect is an axis-aligned rectangle in canvas coordinates.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewRect builds a normalized rectangle from any two opposite corners.
func NewRect(x1, y1, x2, y2 float64) Rect {
	r := Rect{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}

	if r.MinX > r.MaxX {
		r.MinX, r.MaxX = r.MaxX, r.MinX
	}

	if r.MinY > r.MaxY {
		r.MinY, r.MaxY = r.MaxY, r.MinY
	}

	return r
}

// Intersects reports whether the rectangles overlap. Touching edges count as
// an intersection.
func (r Rect) Intersects(o Rect) bool {
	return r.MinX <= o.MaxX && o.MinX <= r.MaxX &&
		r.MinY <= o.MaxY && o.MinY <= r.MaxY
}

// Bounds returns the node's bounding box.
func (n *Node) Bounds() Rect {
	w := n.Width
	if w <= 0 {
		w = NodeWidth(n.Name, n.Type)
	}

	return Rect{MinX: n.X, MinY: n.Y, MaxX: n.X + w, MaxY: n.Y + NodeHeight}
}
