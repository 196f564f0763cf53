package graph

import (
	"context"
	"fmt"

	"github.com/dukex/flowdeck/pkg/events"
	"github.com/dukex/flowdeck/pkg/models"
)

// Export produces a deep copy of the current graph as a persistable
// document. Exporting then importing reproduces an equivalent graph: same
// ids, fields and id counters.
func (s *Store) Export() *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := models.NewDocument()

	for _, id := range s.nodeOrder {
		doc.Nodes = append(doc.Nodes, s.nodes[id].Clone())
	}

	for _, l := range s.links {
		doc.Links = append(doc.Links, l.Clone())
	}

	for _, g := range s.groups {
		doc.Groups = append(doc.Groups, g.Clone())
	}

	for _, a := range s.annotations {
		doc.Annotations = append(doc.Annotations, a.Clone())
	}

	return doc
}

// ImportOptions control the post-load reconciliation passes.
type ImportOptions struct {
	// SkipInputReconcile suppresses the companion input-node pass. Set when
	// restoring an execution-history snapshot, whose node set is
	// intentionally frozen.
	SkipInputReconcile bool
}

// Import replaces the entire in-memory graph with the document's contents.
// The incoming data is validated first and the previous state survives any
// failure. On success the id counters are recomputed from the highest
// numeric suffix seen, the magnet index is rebuilt from node fields, and the
// input-node reconciliation pass runs unless skipped.
func (s *Store) Import(ctx context.Context, doc *models.Document, opts ImportOptions) error {
	if err := ValidateDocument(doc); err != nil {
		return err
	}

	nodes := make(map[string]*models.Node, len(doc.Nodes))
	order := make([]string, 0, len(doc.Nodes))

	var violations []string

	for _, n := range doc.Nodes {
		dup := n.Clone()
		dup.PythonFile = models.NormalizePythonPath(dup.PythonFile)

		if dup.Width <= 0 {
			dup.Width = models.NodeWidth(dup.Name, dup.Type)
		}

		if err := models.ValidateNode(dup); err != nil {
			violations = append(violations, err.Error())

			continue
		}

		if _, exists := nodes[dup.ID]; exists {
			violations = append(violations, fmt.Sprintf("duplicate node id %q", dup.ID))

			continue
		}

		nodes[dup.ID] = dup
		order = append(order, dup.ID)
	}

	links := make([]*models.Link, 0, len(doc.Links))
	linkIndex := make(map[string]*models.Link, len(doc.Links))

	for _, l := range doc.Links {
		dup := l.Clone()

		key := models.PairKey(dup.Source, dup.Target)
		if _, exists := linkIndex[key]; exists {
			// One link per unordered pair; drop duplicates silently.
			continue
		}

		if _, ok := nodes[dup.Source]; !ok {
			violations = append(violations, fmt.Sprintf("link references unknown node %q", dup.Source))

			continue
		}

		if _, ok := nodes[dup.Target]; !ok {
			violations = append(violations, fmt.Sprintf("link references unknown node %q", dup.Target))

			continue
		}

		links = append(links, dup)
		linkIndex[key] = dup
	}

	groups := make([]*models.Group, 0, len(doc.Groups))

	for _, g := range doc.Groups {
		dup := g.Clone()

		if err := models.ValidateGroup(dup); err != nil {
			violations = append(violations, err.Error())

			continue
		}

		groups = append(groups, dup)

		for _, memberID := range dup.NodeIDs {
			if member, ok := nodes[memberID]; ok {
				member.GroupID = dup.ID
			}
		}
	}

	annotations := make([]*models.Annotation, 0, len(doc.Annotations))

	for _, a := range doc.Annotations {
		dup := a.Clone()

		if err := models.ValidateAnnotation(dup); err != nil {
			violations = append(violations, err.Error())

			continue
		}

		annotations = append(annotations, dup)
	}

	if len(violations) > 0 {
		return models.NewValidationError("document", violations)
	}

	s.mu.Lock()

	s.nodes = nodes
	s.nodeOrder = order
	s.links = links
	s.linkIndex = linkIndex
	s.groups = groups
	s.annotations = annotations

	for _, id := range order {
		s.ids.Observe(id)
	}

	for _, g := range groups {
		s.ids.Observe(g.ID)
	}

	for _, a := range annotations {
		s.ids.Observe(a.ID)
	}

	s.rebuildMagnetPairsLocked()

	var needEnrichment []string

	if !opts.SkipInputReconcile && s.analyzer != nil {
		needEnrichment = s.reconcileAllInputNodesLocked(ctx)
	}

	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})

	s.mu.Unlock()

	for _, id := range needEnrichment {
		s.startEnrichment(ctx, id, nil)
	}

	return nil
}
