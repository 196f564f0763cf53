package graph

import (
	"context"

	"github.com/dukex/flowdeck/pkg/events"
	"github.com/dukex/flowdeck/pkg/models"
)

// Magnet pairing keeps an if_node tethered beneath its python node. The
// MagnetPartnerID field on each node is authoritative; the magnets map is a
// fast lookup index that must always be rebuildable from node state alone.

// MagnetPartner returns the partner of the given node, if paired.
func (s *Store) MagnetPartner(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partner, ok := s.magnets[id]

	return partner, ok
}

// SetMagnetPair establishes a symmetric pairing between two nodes,
// dissolving any pairing either node was part of before.
func (s *Store) SetMagnetPair(ctx context.Context, a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	violations := s.missingNodeViolations(a, b)

	if a == b {
		violations = append(violations, "a node cannot be magnet-paired with itself")
	}

	if len(violations) > 0 {
		return models.NewValidationError("magnet pair", violations)
	}

	s.clearMagnetLocked(a)
	s.clearMagnetLocked(b)

	s.nodes[a].MagnetPartnerID = b
	s.nodes[b].MagnetPartnerID = a
	s.magnets[a] = b
	s.magnets[b] = a

	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
	s.scheduleAutosave()

	return nil
}

// ClearMagnetForNode dissolves the node's pairing, clearing both sides.
// Returns false if the node was not paired.
func (s *Store) ClearMagnetForNode(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.magnets[id]; !ok {
		return false
	}

	s.clearMagnetLocked(id)

	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
	s.scheduleAutosave()

	return true
}

func (s *Store) clearMagnetLocked(id string) {
	partner, ok := s.magnets[id]
	if !ok {
		return
	}

	delete(s.magnets, id)
	delete(s.magnets, partner)

	if n, exists := s.nodes[id]; exists {
		n.MagnetPartnerID = ""
	}

	if n, exists := s.nodes[partner]; exists {
		n.MagnetPartnerID = ""
	}
}

// RebuildMagnetPairs reconstructs the lookup index from the authoritative
// MagnetPartnerID fields. Pairings that are not mutual are dropped from both
// sides. Must run once after every load or import.
func (s *Store) RebuildMagnetPairs() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rebuildMagnetPairsLocked()
}

func (s *Store) rebuildMagnetPairsLocked() {
	s.magnets = make(map[string]string)

	for _, id := range s.nodeOrder {
		node := s.nodes[id]
		if node.MagnetPartnerID == "" {
			continue
		}

		partner, ok := s.nodes[node.MagnetPartnerID]
		if !ok || partner.MagnetPartnerID != node.ID {
			node.MagnetPartnerID = ""

			continue
		}

		s.magnets[node.ID] = partner.ID
	}
}
