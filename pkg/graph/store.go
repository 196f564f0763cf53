// Package graph owns the canonical in-memory flowchart graph. Every mutation
// goes through the Store so structural invariants hold: companion input
// nodes, symmetric magnet pairs, one link per unordered endpoint pair, and
// cascading deletes.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/flowdeck/pkg/analyzer"
	"github.com/dukex/flowdeck/pkg/eventbus"
	"github.com/dukex/flowdeck/pkg/events"
	"github.com/dukex/flowdeck/pkg/models"
)

// AutosaveScheduler is notified after every successful mutation. The gateway
// implements it with a debounced save.
type AutosaveScheduler interface {
	ScheduleAutosave()
}

// Selection is the slice of the selection model the store drives while
// cascading deletes, so no selection entry ever references a removed entity.
type Selection interface {
	PruneNode(nodeID string)
	PruneLink(source, target string)
	PruneGroup(groupID string)
	PruneAnnotation(annotationID string)
	SelectGroup(groupID string)
}

// Store is the single source of truth for one editor session's graph. All
// mutations are synchronous and run to completion under the store lock;
// asynchronous enrichment (python analysis) re-fetches entities by id before
// touching them.
type Store struct {
	mu        sync.Mutex
	logger    *slog.Logger
	publisher eventbus.EventPublisher
	analyzer  analyzer.Analyzer
	ids       *IDAllocator

	flowchart string

	nodes       map[string]*models.Node
	nodeOrder   []string
	links       []*models.Link
	linkIndex   map[string]*models.Link
	groups      []*models.Group
	annotations []*models.Annotation
	// magnets is a lookup index only; the authoritative pairing lives on the
	// nodes' MagnetPartnerID fields.
	magnets map[string]string

	selection Selection
	autosave  AutosaveScheduler

	enrichment sync.WaitGroup
}

func NewStore(logger *slog.Logger, publisher eventbus.EventPublisher, pythonAnalyzer analyzer.Analyzer) *Store {
	return &Store{
		logger:    logger,
		publisher: publisher,
		analyzer:  pythonAnalyzer,
		ids:       NewIDAllocator(),
		nodes:     make(map[string]*models.Node),
		linkIndex: make(map[string]*models.Link),
		magnets:   make(map[string]string),
	}
}

// SetSelection wires the selection model the store prunes during cascades.
func (s *Store) SetSelection(sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection = sel
}

// SetAutosave wires the autosave scheduler notified after mutations.
func (s *Store) SetAutosave(a AutosaveScheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.autosave = a
}

// SetFlowchart records the flowchart name used as the event routing key.
func (s *Store) SetFlowchart(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flowchart = name
}

func (s *Store) Flowchart() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.flowchart
}

// Wait joins any pending asynchronous input-node enrichment. Tests and
// shutdown paths use it; normal operation never blocks on it.
func (s *Store) Wait() {
	s.enrichment.Wait()
}

// publish sends an event, logging delivery failures. Event delivery is a UI
// concern and never fails a mutation.
func (s *Store) publish(ctx context.Context, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, s.flowchart, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish graph event",
			"event_type", event.GetType(), "error", err)
	}
}

func (s *Store) scheduleAutosave() {
	if s.autosave != nil {
		s.autosave.ScheduleAutosave()
	}
}

// Node returns the node with the given id. The returned value must be
// treated as read-only; all mutation goes through store operations.
func (s *Store) Node(id string) (*models.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]

	return n, ok
}

// Nodes returns the nodes in insertion order.
func (s *Store) Nodes() []*models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nodesLocked()
}

func (s *Store) nodesLocked() []*models.Node {
	out := make([]*models.Node, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		out = append(out, s.nodes[id])
	}

	return out
}

// NodeInput carries caller-supplied fields for a new node.
type NodeInput struct {
	X              float64
	Y              float64
	Name           string
	Type           models.NodeType
	PythonFile     string
	Parameters     []string
	InputValues    map[string]string
	TargetNodeID   string
	SkipInputCheck bool
	DataSource     *models.DataSource
}

// AddNode validates and appends a new node, emitting NodeAdded then
// StateChanged. For python nodes it starts the asynchronous companion
// input-node enrichment; the node itself is complete and valid before that
// enrichment resolves.
func (s *Store) AddNode(ctx context.Context, input NodeInput) (*models.Node, error) {
	s.mu.Lock()

	nodeType := input.Type
	if nodeType == "" {
		nodeType = models.NodeTypeDefault
	}

	node := &models.Node{
		ID:             s.ids.Next(nodeIDPrefix),
		X:              input.X,
		Y:              input.Y,
		Name:           input.Name,
		Type:           nodeType,
		PythonFile:     models.NormalizePythonPath(input.PythonFile),
		Width:          models.NodeWidth(input.Name, nodeType),
		Parameters:     input.Parameters,
		InputValues:    input.InputValues,
		TargetNodeID:   input.TargetNodeID,
		SkipInputCheck: input.SkipInputCheck,
		DataSource:     input.DataSource,
	}

	if err := models.ValidateNode(node); err != nil {
		s.mu.Unlock()

		return nil, err
	}

	s.nodes[node.ID] = node
	s.nodeOrder = append(s.nodeOrder, node.ID)

	s.publish(ctx, events.NodeAdded{BaseEvent: events.NewBaseEvent(events.NodeAddedEvent, s.flowchart), Node: node})
	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
	s.scheduleAutosave()

	needsEnrichment := node.IsPythonNode() && node.PythonFile != "" && !node.SkipInputCheck && s.analyzer != nil
	nodeID := node.ID

	s.mu.Unlock()

	if needsEnrichment {
		s.startEnrichment(ctx, nodeID, nil)
	}

	return node, nil
}

// NodeUpdate carries partial updates; nil fields are left untouched.
type NodeUpdate struct {
	Name        *string
	X           *float64
	Y           *float64
	PythonFile  *string
	InputValues map[string]string
	DataSource  *models.DataSource
	SaveStatus  *string
}

// UpdateNode applies a partial update. It returns false for unknown ids and
// a ValidationError when the update would violate node rules; the stored
// node is never left partially mutated.
func (s *Store) UpdateNode(ctx context.Context, id string, update NodeUpdate) (bool, error) {
	s.mu.Lock()

	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()

		return false, nil
	}

	updated := node.Clone()

	if update.Name != nil {
		updated.Name = *update.Name
		updated.Width = models.NodeWidth(updated.Name, updated.Type)
	}

	if update.X != nil {
		updated.X = *update.X
	}

	if update.Y != nil {
		updated.Y = *update.Y
	}

	pythonFileChanged := false

	if update.PythonFile != nil {
		normalized := models.NormalizePythonPath(*update.PythonFile)
		pythonFileChanged = node.IsPythonNode() && normalized != node.PythonFile
		updated.PythonFile = normalized
	}

	if update.InputValues != nil {
		updated.InputValues = update.InputValues
	}

	if update.DataSource != nil {
		updated.DataSource = update.DataSource
	}

	if update.SaveStatus != nil {
		updated.SaveStatus = *update.SaveStatus
	}

	if err := models.ValidateNode(updated); err != nil {
		s.mu.Unlock()

		return false, err
	}

	var preserved map[string]string

	if pythonFileChanged {
		// The old companions' values survive for parameters the new file
		// still declares.
		preserved = make(map[string]string)

		for _, companion := range s.inputNodesForLocked(id) {
			for k, v := range companion.InputValues {
				preserved[k] = v
			}

			s.removeNodeLocked(ctx, companion)
		}
	}

	*node = *updated
	s.nodes[id] = node

	s.publish(ctx, events.NodeUpdated{BaseEvent: events.NewBaseEvent(events.NodeUpdatedEvent, s.flowchart), Node: node})
	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
	s.scheduleAutosave()

	needsEnrichment := pythonFileChanged && node.PythonFile != "" && s.analyzer != nil

	s.mu.Unlock()

	if needsEnrichment {
		s.startEnrichment(ctx, id, preserved)
	}

	return true, nil
}

// RemoveNode deletes a node and everything that depends on it: touching
// links, companion input nodes, group membership and selection entries.
// Input nodes are protected from direct deletion unless force is set.
func (s *Store) RemoveNode(ctx context.Context, id string, force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return false
	}

	if node.IsInputNode() && !force {
		s.publish(ctx, events.InputNodeDeletionAttempted{
			BaseEvent: events.NewBaseEvent(events.InputNodeDeletionAttemptedEvent, s.flowchart),
			NodeID:    node.ID,
			TargetID:  node.TargetNodeID,
		})

		return false
	}

	s.removeNodeLocked(ctx, node)
	s.scheduleAutosave()

	return true
}

func (s *Store) removeNodeLocked(ctx context.Context, node *models.Node) {
	// Python nodes take their auto-managed companions with them.
	if node.IsPythonNode() {
		for _, companion := range s.inputNodesForLocked(node.ID) {
			s.removeNodeLocked(ctx, companion)
		}
	}

	s.removeLinksTouchingLocked(ctx, node.ID)
	s.dropFromGroupLocked(ctx, node)
	s.clearMagnetLocked(node.ID)

	delete(s.nodes, node.ID)

	for i, id := range s.nodeOrder {
		if id == node.ID {
			s.nodeOrder = append(s.nodeOrder[:i], s.nodeOrder[i+1:]...)

			break
		}
	}

	if s.selection != nil {
		s.selection.PruneNode(node.ID)
	}

	s.publish(ctx, events.NodeRemoved{BaseEvent: events.NewBaseEvent(events.NodeRemovedEvent, s.flowchart), Node: node})
	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
}

// inputNodesForLocked returns every input node targeting the given node.
// The invariant is at most one, but loads from older data may violate it, so
// cascades handle any count.
func (s *Store) inputNodesForLocked(targetID string) []*models.Node {
	var companions []*models.Node

	for _, id := range s.nodeOrder {
		n := s.nodes[id]
		if n.IsInputNode() && n.TargetNodeID == targetID {
			companions = append(companions, n)
		}
	}

	return companions
}

func (s *Store) dropFromGroupLocked(ctx context.Context, node *models.Node) {
	if node.GroupID == "" {
		return
	}

	for i, g := range s.groups {
		if g.ID != node.GroupID {
			continue
		}

		g.Remove(node.ID)
		node.GroupID = ""

		if len(g.NodeIDs) < models.MinGroupSize {
			for _, memberID := range g.NodeIDs {
				if member, ok := s.nodes[memberID]; ok {
					member.GroupID = ""
				}
			}

			s.groups = append(s.groups[:i], s.groups[i+1:]...)

			if s.selection != nil {
				s.selection.PruneGroup(g.ID)
			}

			s.publish(ctx, events.GroupRemoved{BaseEvent: events.NewBaseEvent(events.GroupRemovedEvent, s.flowchart), Group: g})
		} else {
			s.publish(ctx, events.GroupUpdated{BaseEvent: events.NewBaseEvent(events.GroupUpdatedEvent, s.flowchart), Group: g})
		}

		return
	}
}

// missingNodeViolations builds violations for endpoints that don't exist.
func (s *Store) missingNodeViolations(ids ...string) []string {
	var violations []string

	for _, id := range ids {
		if _, ok := s.nodes[id]; !ok {
			violations = append(violations, fmt.Sprintf("node %q does not exist", id))
		}
	}

	return violations
}
