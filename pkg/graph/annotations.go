package graph

import (
	"context"

	"github.com/dukex/flowdeck/pkg/events"
	"github.com/dukex/flowdeck/pkg/models"
)

// Annotations returns the annotations in creation order.
func (s *Store) Annotations() []*models.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*models.Annotation(nil), s.annotations...)
}

// Annotation looks up an annotation by id.
func (s *Store) Annotation(id string) (*models.Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.annotationLocked(id)

	return a, ok
}

func (s *Store) annotationLocked(id string) (*models.Annotation, bool) {
	for _, a := range s.annotations {
		if a.ID == id {
			return a, true
		}
	}

	return nil, false
}

// AnnotationInput carries caller-supplied fields for a new annotation.
type AnnotationInput struct {
	X    float64
	Y    float64
	Type models.AnnotationType

	Text     string
	FontSize int

	StartX      float64
	StartY      float64
	EndX        float64
	EndY        float64
	StrokeWidth float64
	StrokeColor string
}

// AddAnnotation places a text label or arrow on the canvas.
func (s *Store) AddAnnotation(ctx context.Context, input AnnotationInput) (*models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	annotation := &models.Annotation{
		ID:          s.ids.Next(annotationIDPrefix),
		X:           input.X,
		Y:           input.Y,
		Type:        input.Type,
		Text:        input.Text,
		FontSize:    input.FontSize,
		StartX:      input.StartX,
		StartY:      input.StartY,
		EndX:        input.EndX,
		EndY:        input.EndY,
		StrokeWidth: input.StrokeWidth,
		StrokeColor: input.StrokeColor,
	}

	if annotation.Type == models.AnnotationTypeText && annotation.FontSize == 0 {
		annotation.FontSize = 14
	}

	if err := models.ValidateAnnotation(annotation); err != nil {
		return nil, err
	}

	s.annotations = append(s.annotations, annotation)

	s.publish(ctx, events.AnnotationAdded{BaseEvent: events.NewBaseEvent(events.AnnotationAddedEvent, s.flowchart), Annotation: annotation})
	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
	s.scheduleAutosave()

	return annotation, nil
}

// AnnotationUpdate carries partial annotation updates.
type AnnotationUpdate struct {
	X           *float64
	Y           *float64
	Text        *string
	FontSize    *int
	StartX      *float64
	StartY      *float64
	EndX        *float64
	EndY        *float64
	StrokeWidth *float64
	StrokeColor *string
}

// UpdateAnnotation applies a partial update. Returns false for unknown ids.
func (s *Store) UpdateAnnotation(ctx context.Context, id string, update AnnotationUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	annotation, ok := s.annotationLocked(id)
	if !ok {
		return false
	}

	if update.X != nil {
		annotation.X = *update.X
	}

	if update.Y != nil {
		annotation.Y = *update.Y
	}

	if update.Text != nil {
		annotation.Text = *update.Text
	}

	if update.FontSize != nil {
		annotation.FontSize = *update.FontSize
	}

	if update.StartX != nil {
		annotation.StartX = *update.StartX
	}

	if update.StartY != nil {
		annotation.StartY = *update.StartY
	}

	if update.EndX != nil {
		annotation.EndX = *update.EndX
	}

	if update.EndY != nil {
		annotation.EndY = *update.EndY
	}

	if update.StrokeWidth != nil {
		annotation.StrokeWidth = *update.StrokeWidth
	}

	if update.StrokeColor != nil {
		annotation.StrokeColor = *update.StrokeColor
	}

	s.publish(ctx, events.AnnotationUpdated{BaseEvent: events.NewBaseEvent(events.AnnotationUpdatedEvent, s.flowchart), Annotation: annotation})
	s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
	s.scheduleAutosave()

	return true
}

// RemoveAnnotation deletes an annotation, clearing it from selection if
// selected.
func (s *Store) RemoveAnnotation(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.annotations {
		if a.ID != id {
			continue
		}

		s.annotations = append(s.annotations[:i], s.annotations[i+1:]...)

		if s.selection != nil {
			s.selection.PruneAnnotation(id)
		}

		s.publish(ctx, events.AnnotationRemoved{BaseEvent: events.NewBaseEvent(events.AnnotationRemovedEvent, s.flowchart), Annotation: a})
		s.publish(ctx, events.StateChanged{BaseEvent: events.NewBaseEvent(events.StateChangedEvent, s.flowchart)})
		s.scheduleAutosave()

		return true
	}

	return false
}
