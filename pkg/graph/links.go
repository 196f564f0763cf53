package graph

import (
	"context"

	"github.com/dukex/flowdeck/pkg/events"
	"github.com/dukex/flowdeck/pkg/models"
)

// Links returns the links in insertion order.
func (s *Store) Links() []*models.Link {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*models.Link(nil), s.links...)
}

// Link looks up the link between the unordered endpoint pair.
func (s *Store) Link(a, b string) (*models.Link, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.linkIndex[models.PairKey(a, b)]

	return l, ok
}

// AddLink creates a user link from source to target. Creation is idempotent
// on the unordered pair: if a link already connects the two nodes in either
// direction the call returns (nil, nil) and the graph is unchanged.
func (s *Store) AddLink(ctx context.Context, source, target string) (*models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.linkIndex[models.PairKey(source, target)]; exists {
		return nil, nil
	}

	link := &models.Link{Source: source, Target: target}

	if err := models.ValidateLink(link); err != nil {
		return nil, err
	}

	if violations := s.missingNodeViolations(source, target); len(violations) > 0 {
		return nil, models.NewValidationError("link", violations)
	}

	s.appendLinkLocked(ctx, link)
	s.scheduleAutosave()

	return link, nil
}

// appendLinkLocked inserts an already-validated link and announces it. The
// input-node enrichment path uses it directly to create managed
// input_connection links.
func (s *Store) appendLinkLocked(ctx context.Context, link *models.Link) {
	s.links = append(s.links, link)
	s.linkIndex[models.PairKey(link.Source, link.Target)] = link

	s.publish(ctx, events.LinkAdded{BaseEvent: events.NewBaseEvent(events.LinkAddedEvent, s.flowchart), Link: link})
	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
}

// LinkUpdate carries partial link updates; nil fields are left untouched.
type LinkUpdate struct {
	Style     *string
	Condition *models.LinkCondition
}

// UpdateLink mutates the link between the unordered pair. Store-managed
// input connection links are not updatable and report false.
func (s *Store) UpdateLink(ctx context.Context, a, b string, update LinkUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.linkIndex[models.PairKey(a, b)]
	if !ok || link.Type == models.LinkTypeInputConnection {
		return false
	}

	if update.Style != nil {
		link.Style = *update.Style
	}

	if update.Condition != nil {
		link.Condition = update.Condition
	}

	s.publish(ctx, events.LinkUpdated{BaseEvent: events.NewBaseEvent(events.LinkUpdatedEvent, s.flowchart), Link: link})
	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
	s.scheduleAutosave()

	return true
}

// RemoveLink deletes the link between the unordered pair, clearing it from
// selection if selected. Input connection links are store-managed and report
// false.
func (s *Store) RemoveLink(ctx context.Context, a, b string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.linkIndex[models.PairKey(a, b)]
	if !ok || link.Type == models.LinkTypeInputConnection {
		return false
	}

	s.removeLinkLocked(ctx, link)
	s.scheduleAutosave()

	return true
}

func (s *Store) removeLinkLocked(ctx context.Context, link *models.Link) {
	delete(s.linkIndex, models.PairKey(link.Source, link.Target))

	for i, l := range s.links {
		if l == link {
			s.links = append(s.links[:i], s.links[i+1:]...)

			break
		}
	}

	if s.selection != nil {
		s.selection.PruneLink(link.Source, link.Target)
	}

	s.publish(ctx, events.LinkRemoved{BaseEvent: events.NewBaseEvent(events.LinkRemovedEvent, s.flowchart), Link: link})
	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
}

func (s *Store) removeLinksTouchingLocked(ctx context.Context, nodeID string) {
	touching := make([]*models.Link, 0)

	for _, l := range s.links {
		if l.Touches(nodeID) {
			touching = append(touching, l)
		}
	}

	for _, l := range touching {
		s.removeLinkLocked(ctx, l)
	}
}
