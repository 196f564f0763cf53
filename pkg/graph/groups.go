package graph

import (
	"context"
	"fmt"

	"github.com/dukex/flowdeck/pkg/events"
	"github.com/dukex/flowdeck/pkg/models"
)

// Groups returns the groups in creation order.
func (s *Store) Groups() []*models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*models.Group(nil), s.groups...)
}

// Group looks up a group by id.
func (s *Store) Group(id string) (*models.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groupLocked(id)

	return g, ok
}

func (s *Store) groupLocked(id string) (*models.Group, bool) {
	for _, g := range s.groups {
		if g.ID == id {
			return g, true
		}
	}

	return nil, false
}

// GroupInput carries caller-supplied fields for a new group.
type GroupInput struct {
	Name        string
	Description string
}

// CreateGroup clusters at least two existing, ungrouped nodes and replaces
// the current selection with the new group.
func (s *Store) CreateGroup(ctx context.Context, nodeIDs []string, input GroupInput) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var violations []string

	if len(nodeIDs) < models.MinGroupSize {
		violations = append(violations, fmt.Sprintf("a group needs at least %d nodes", models.MinGroupSize))
	}

	violations = append(violations, s.missingNodeViolations(nodeIDs...)...)

	for _, id := range nodeIDs {
		if n, ok := s.nodes[id]; ok && n.GroupID != "" {
			violations = append(violations, fmt.Sprintf("node %q already belongs to group %q", id, n.GroupID))
		}
	}

	if len(violations) > 0 {
		return nil, models.NewValidationError("group", violations)
	}

	group := &models.Group{
		ID:          s.ids.Next(groupIDPrefix),
		Name:        input.Name,
		Description: input.Description,
		NodeIDs:     append([]string(nil), nodeIDs...),
	}

	if group.Name == "" {
		group.Name = "Group " + group.ID[len(groupIDPrefix)+1:]
	}

	if err := models.ValidateGroup(group); err != nil {
		return nil, err
	}

	for _, id := range nodeIDs {
		s.nodes[id].GroupID = group.ID
	}

	s.groups = append(s.groups, group)

	if s.selection != nil {
		s.selection.SelectGroup(group.ID)
	}

	s.publish(ctx, events.GroupCreated{BaseEvent: events.NewBaseEvent(events.GroupCreatedEvent, s.flowchart), Group: group})
	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
	s.scheduleAutosave()

	return group, nil
}

// GroupUpdate carries partial group updates.
type GroupUpdate struct {
	Name        *string
	Description *string
}

// UpdateGroup renames or re-describes a group. Returns false for unknown
// ids.
func (s *Store) UpdateGroup(ctx context.Context, id string, update GroupUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groupLocked(id)
	if !ok {
		return false
	}

	if update.Name != nil && *update.Name != "" {
		group.Name = *update.Name
	}

	if update.Description != nil {
		group.Description = *update.Description
	}

	s.publish(ctx, events.GroupUpdated{BaseEvent: events.NewBaseEvent(events.GroupUpdatedEvent, s.flowchart), Group: group})
	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
	s.scheduleAutosave()

	return true
}

// RemoveGroup dissolves a group, clearing membership on former members and
// the selection if the group was selected. Member nodes themselves survive.
func (s *Store) RemoveGroup(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, g := range s.groups {
		if g.ID != id {
			continue
		}

		for _, memberID := range g.NodeIDs {
			if member, ok := s.nodes[memberID]; ok {
				member.GroupID = ""
			}
		}

		s.groups = append(s.groups[:i], s.groups[i+1:]...)

		if s.selection != nil {
			s.selection.PruneGroup(id)
		}

		s.publish(ctx, events.GroupRemoved{BaseEvent: events.NewBaseEvent(events.GroupRemovedEvent, s.flowchart), Group: g})
		s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
		s.scheduleAutosave()

		return true
	}

	return false
}
