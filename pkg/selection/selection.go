// Package selection tracks which graph entities are selected in an editor
// session. Selection is a tagged union over node set, link, group and
// annotation: nodes support multi-select, every other category holds at most
// one entry, and populating one category clears the others.
package selection

import (
	"context"
	"sync"

	"github.com/dukex/flowdeck/pkg/eventbus"
	"github.com/dukex/flowdeck/pkg/events"
	"github.com/dukex/flowdeck/pkg/models"
)

// LinkRef identifies a selected link by its endpoints.
type LinkRef struct {
	Source string
	Target string
}

// Model holds the transient selection state for one editor session.
type Model struct {
	mu        sync.Mutex
	publisher eventbus.EventPublisher
	flowchart string

	nodes     map[string]struct{}
	nodeOrder []string
	link      *LinkRef
	group     string
	annot     string

	groupSelectMode bool
	areaActive      bool
	areaStartX      float64
	areaStartY      float64
	areaEndX        float64
	areaEndY        float64
}

func NewModel(publisher eventbus.EventPublisher) *Model {
	return &Model{
		publisher: publisher,
		nodes:     make(map[string]struct{}),
	}
}

// SetFlowchart records the flowchart name used as the event routing key.
func (m *Model) SetFlowchart(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flowchart = name
}

func (m *Model) emitChangedLocked() {
	if m.publisher == nil {
		return
	}

	event := events.SelectionChanged{
		BaseEvent: events.NewBaseEvent(events.SelectionChangedEvent, m.flowchart),
		NodeIDs:   append([]string(nil), m.nodeOrder...),
		GroupID:   m.group,
	}

	event.AnnotationID = m.annot

	if m.link != nil {
		event.LinkSource = m.link.Source
		event.LinkTarget = m.link.Target
	}

	_ = m.publisher.Publish(context.Background(), m.flowchart, event)
}

func (m *Model) clearNonNodesLocked() {
	m.link = nil
	m.group = ""
	m.annot = ""
}

func (m *Model) clearNodesLocked() {
	m.nodes = make(map[string]struct{})
	m.nodeOrder = nil
}

// SelectNode selects a node. Without multiSelect the node becomes the sole
// selection; with it the node's membership is toggled. Either way the link,
// group and annotation selections are cleared.
func (m *Model) SelectNode(id string, multiSelect bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearNonNodesLocked()

	if !multiSelect {
		m.clearNodesLocked()
		m.nodes[id] = struct{}{}
		m.nodeOrder = []string{id}
		m.emitChangedLocked()

		return
	}

	if _, selected := m.nodes[id]; selected {
		delete(m.nodes, id)

		for i, existing := range m.nodeOrder {
			if existing == id {
				m.nodeOrder = append(m.nodeOrder[:i], m.nodeOrder[i+1:]...)

				break
			}
		}
	} else {
		m.nodes[id] = struct{}{}
		m.nodeOrder = append(m.nodeOrder, id)
	}

	m.emitChangedLocked()
}

// SelectLink makes the link the sole selection.
func (m *Model) SelectLink(source, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearNodesLocked()
	m.clearNonNodesLocked()
	m.link = &LinkRef{Source: source, Target: target}
	m.emitChangedLocked()
}

// SelectGroup makes the group the sole selection.
func (m *Model) SelectGroup(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearNodesLocked()
	m.clearNonNodesLocked()
	m.group = id
	m.emitChangedLocked()
}

// SelectAnnotation makes the annotation the sole selection.
func (m *Model) SelectAnnotation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearNodesLocked()
	m.clearNonNodesLocked()
	m.annot = id
	m.emitChangedLocked()
}

// Clear empties the whole selection.
func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearNodesLocked()
	m.clearNonNodesLocked()
	m.emitChangedLocked()
}

// SelectedNodes returns the selected node ids in selection order.
func (m *Model) SelectedNodes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.nodeOrder...)
}

// IsNodeSelected reports membership in the node selection.
func (m *Model) IsNodeSelected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.nodes[id]

	return ok
}

// SelectedLink returns the selected link, if any.
func (m *Model) SelectedLink() (LinkRef, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.link == nil {
		return LinkRef{}, false
	}

	return *m.link, true
}

// SelectedGroup returns the selected group id, if any.
func (m *Model) SelectedGroup() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.group, m.group != ""
}

// SelectedAnnotation returns the selected annotation id, if any.
func (m *Model) SelectedAnnotation() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.annot, m.annot != ""
}

// SetGroupSelectMode toggles the externally-controlled mode that lets area
// selection start without a modifier key.
func (m *Model) SetGroupSelectMode(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.groupSelectMode = enabled
}

// StartAreaSelection begins a rectangle selection at the given canvas point.
// It requires the shift modifier or group-select mode and reports whether
// the selection started.
func (m *Model) StartAreaSelection(x, y float64, shift bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !shift && !m.groupSelectMode {
		return false
	}

	m.areaActive = true
	m.areaStartX, m.areaStartY = x, y
	m.areaEndX, m.areaEndY = x, y

	return true
}

// UpdateAreaSelection moves the rectangle's free corner.
func (m *Model) UpdateAreaSelection(x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.areaActive {
		return
	}

	m.areaEndX, m.areaEndY = x, y
}

// AreaRect returns the current selection rectangle.
func (m *Model) AreaRect() (models.Rect, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.areaActive {
		return models.Rect{}, false
	}

	return models.NewRect(m.areaStartX, m.areaStartY, m.areaEndX, m.areaEndY), true
}

// FinishAreaSelection resolves the rectangle against the given nodes. A node
// is included when its bounding box intersects the rectangle, touching edges
// included. With ctrl held the hits merge into the existing node selection;
// otherwise they replace it. Returns the resulting selection.
func (m *Model) FinishAreaSelection(nodes []*models.Node, ctrl bool) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.areaActive {
		return append([]string(nil), m.nodeOrder...)
	}

	m.areaActive = false
	rect := models.NewRect(m.areaStartX, m.areaStartY, m.areaEndX, m.areaEndY)

	if !ctrl {
		m.clearNodesLocked()
	}

	m.clearNonNodesLocked()

	for _, n := range nodes {
		if !rect.Intersects(n.Bounds()) {
			continue
		}

		if _, already := m.nodes[n.ID]; already {
			continue
		}

		m.nodes[n.ID] = struct{}{}
		m.nodeOrder = append(m.nodeOrder, n.ID)
	}

	m.emitChangedLocked()

	return append([]string(nil), m.nodeOrder...)
}

// Validate prunes selection entries referencing entities the document no
// longer contains. Must run after any external bulk mutation such as a load.
func (m *Model) Validate(doc *models.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := false

	nodeIDs := make(map[string]struct{}, len(doc.Nodes))
	for _, n := range doc.Nodes {
		nodeIDs[n.ID] = struct{}{}
	}

	kept := m.nodeOrder[:0]

	for _, id := range m.nodeOrder {
		if _, ok := nodeIDs[id]; ok {
			kept = append(kept, id)
		} else {
			delete(m.nodes, id)

			changed = true
		}
	}

	m.nodeOrder = kept

	if m.link != nil {
		found := false

		for _, l := range doc.Links {
			if l.SamePair(m.link.Source, m.link.Target) {
				found = true

				break
			}
		}

		if !found {
			m.link = nil
			changed = true
		}
	}

	if m.group != "" {
		found := false

		for _, g := range doc.Groups {
			if g.ID == m.group {
				found = true

				break
			}
		}

		if !found {
			m.group = ""
			changed = true
		}
	}

	if m.annot != "" {
		found := false

		for _, a := range doc.Annotations {
			if a.ID == m.annot {
				found = true

				break
			}
		}

		if !found {
			m.annot = ""
			changed = true
		}
	}

	if changed {
		m.emitChangedLocked()
	}
}

// The prune hooks below implement graph.Selection; the store calls them
// while cascading deletes.

func (m *Model) PruneNode(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[nodeID]; !ok {
		return
	}

	delete(m.nodes, nodeID)

	for i, id := range m.nodeOrder {
		if id == nodeID {
			m.nodeOrder = append(m.nodeOrder[:i], m.nodeOrder[i+1:]...)

			break
		}
	}

	m.emitChangedLocked()
}

func (m *Model) PruneLink(source, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.link == nil || !(&models.Link{Source: m.link.Source, Target: m.link.Target}).SamePair(source, target) {
		return
	}

	m.link = nil
	m.emitChangedLocked()
}

func (m *Model) PruneGroup(groupID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.group != groupID {
		return
	}

	m.group = ""
	m.emitChangedLocked()
}

func (m *Model) PruneAnnotation(annotationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.annot != annotationID {
		return
	}

	m.annot = ""
	m.emitChangedLocked()
}
