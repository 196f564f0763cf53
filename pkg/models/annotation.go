package models

// AnnotationType distinguishes the two annotation shapes.
type AnnotationType string

const (
	AnnotationTypeText  AnnotationType = "text"
	AnnotationTypeArrow AnnotationType = "arrow"
)

// Annotation is a free-floating canvas decoration. Annotations exist
// independently of nodes and never participate in execution.
type Annotation struct {
	ID   string         `json:"id"   validate:"required"`
	X    float64        `json:"x"`
	Y    float64        `json:"y"`
	Type AnnotationType `json:"type" validate:"required"`

	// Text annotations.
	Text     string `json:"text,omitempty"`
	FontSize int    `json:"fontSize,omitempty"`

	// Arrow annotations.
	StartX      float64 `json:"startX,omitempty"`
	StartY      float64 `json:"startY,omitempty"`
	EndX        float64 `json:"endX,omitempty"`
	EndY        float64 `json:"endY,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	StrokeColor string  `json:"strokeColor,omitempty"`
}

// Clone returns a copy of the annotation.
func (a *Annotation) Clone() *Annotation {
	dup := *a

	return &dup
}
