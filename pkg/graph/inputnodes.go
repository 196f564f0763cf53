package graph

import (
	"context"

	"github.com/dukex/flowdeck/pkg/events"
	"github.com/dukex/flowdeck/pkg/models"
)

const inputNodeGap = 60.0

// startEnrichment launches the asynchronous companion input-node pass for a
// python node. The synchronous part of the triggering mutation is already
// complete and valid; this only adds the companion when the analysis backend
// reports declared parameters. Analyzer failures are soft: logged, and the
// python node simply ends up without a companion.
func (s *Store) startEnrichment(ctx context.Context, nodeID string, preserved map[string]string) {
	s.enrichment.Add(1)

	// The enrichment must survive the caller's request lifetime.
	bg := context.WithoutCancel(ctx)

	go func() {
		defer s.enrichment.Done()
		s.reconcileInputNode(bg, nodeID, preserved)
	}()
}

func (s *Store) reconcileInputNode(ctx context.Context, targetID string, preserved map[string]string) {
	s.mu.Lock()
	target, ok := s.nodes[targetID]

	if !ok || !target.IsPythonNode() || target.PythonFile == "" {
		s.mu.Unlock()

		return
	}

	pythonFile := target.PythonFile
	s.mu.Unlock()

	analysis, err := s.analyzer.AnalyzeFunction(ctx, pythonFile)
	if err != nil {
		s.logger.WarnContext(ctx, "python analysis failed, skipping input node",
			"node_id", targetID, "python_file", pythonFile, "error", err)

		return
	}

	params := analysis.DeclaredParameters()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Arbitrary mutations may have happened while the analysis was in
	// flight; trust only what the arena holds now.
	target, ok = s.nodes[targetID]
	if !ok || !target.IsPythonNode() || target.PythonFile != pythonFile {
		return
	}

	companions := s.inputNodesForLocked(targetID)

	if len(params) == 0 {
		for _, companion := range companions {
			s.removeNodeLocked(ctx, companion)
		}

		if len(companions) > 0 {
			s.scheduleAutosave()
		}

		return
	}

	// Idempotence: one companion stays, extras from re-entrant calls or
	// stale data are pruned.
	var companion *models.Node

	if len(companions) > 0 {
		companion = companions[0]
		for _, extra := range companions[1:] {
			s.removeNodeLocked(ctx, extra)
		}

		companion.Parameters = append([]string(nil), params...)
		companion.InputValues = mergeInputValues(params, companion.InputValues, preserved)

		s.publish(ctx, events.NodeUpdated{BaseEvent: events.NewBaseEvent(events.NodeUpdatedEvent, s.flowchart), Node: companion})
	} else {
		companion = &models.Node{
			ID:             s.ids.Next(nodeIDPrefix),
			X:              target.X - models.InputNodeWidth - inputNodeGap,
			Y:              target.Y,
			Name:           target.Name + " inputs",
			Type:           models.NodeTypeInput,
			Width:          models.InputNodeWidth,
			Parameters:     append([]string(nil), params...),
			InputValues:    mergeInputValues(params, nil, preserved),
			TargetNodeID:   target.ID,
			SkipInputCheck: true,
		}

		s.nodes[companion.ID] = companion
		s.nodeOrder = append(s.nodeOrder, companion.ID)

		s.publish(ctx, events.NodeAdded{BaseEvent: events.NewBaseEvent(events.NodeAddedEvent, s.flowchart), Node: companion})
	}

	if _, exists := s.linkIndex[models.PairKey(companion.ID, target.ID)]; !exists {
		s.appendLinkLocked(ctx, &models.Link{
			Source: companion.ID,
			Target: target.ID,
			Type:   models.LinkTypeInputConnection,
			Style:  models.LinkStyleDashed,
		})
	}

	s.publish(ctx, events.InputNodeCreated{
		BaseEvent: events.NewBaseEvent(events.InputNodeCreatedEvent, s.flowchart),
		InputNode: companion,
		TargetID:  target.ID,
	})
	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
	s.scheduleAutosave()
}

// mergeInputValues keeps user-entered values for parameters the new list
// still declares and blanks the rest.
func mergeInputValues(params []string, existing, preserved map[string]string) map[string]string {
	merged := make(map[string]string, len(params))

	for _, p := range params {
		if v, ok := existing[p]; ok {
			merged[p] = v

			continue
		}

		if v, ok := preserved[p]; ok {
			merged[p] = v

			continue
		}

		merged[p] = ""
	}

	return merged
}

// reconcileAllInputNodesLocked runs the load-time pass: prune duplicate
// companions synchronously and start enrichment for python nodes that lack
// one. History restores skip this to keep their frozen node set intact.
func (s *Store) reconcileAllInputNodesLocked(ctx context.Context) []string {
	var needed []string

	for _, id := range s.nodeOrder {
		node := s.nodes[id]
		if !node.IsPythonNode() || node.PythonFile == "" {
			continue
		}

		companions := s.inputNodesForLocked(id)
		if len(companions) > 1 {
			for _, extra := range companions[1:] {
				s.removeNodeLocked(ctx, extra)
			}
		}

		if len(companions) == 0 {
			needed = append(needed, id)
		}
	}

	return needed
}
