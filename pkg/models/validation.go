package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError carries every rule a mutation violated. The store raises it
// synchronously, before any state is touched, so callers can surface the full
// concatenated message to the user.
type ValidationError struct {
	Entity     string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(e.Violations, "; "))
}

// NewValidationError builds a validation error from collected violations.
func NewValidationError(entity string, violations []string) *ValidationError {
	return &ValidationError{Entity: entity, Violations: violations}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError

	return errors.As(err, &ve)
}

// structViolations runs tag validation and flattens field errors into
// human-readable rule descriptions.
func structViolations(v any) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	violations := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			violations = append(violations, fmt.Sprintf("%s is required", fe.Field()))
		case "min":
			violations = append(violations, fmt.Sprintf("%s must have at least %s entries or characters", fe.Field(), fe.Param()))
		default:
			violations = append(violations, fmt.Sprintf("%s failed rule %q", fe.Field(), fe.Tag()))
		}
	}

	return violations
}

// ValidateNode checks a node's structural rules and returns a ValidationError
// listing every violation, or nil.
func ValidateNode(n *Node) error {
	violations := structViolations(n)

	if !IsKnownNodeType(n.Type) {
		violations = append(violations, fmt.Sprintf("unknown node type %q", n.Type))
	}

	if n.Type == NodeTypeInput && n.TargetNodeID == "" {
		violations = append(violations, "input node must reference a target node")
	}

	if n.Type == NodeTypeDataSave && n.DataSource != nil && n.DataSource.Origin == "" {
		violations = append(violations, "data source origin is required")
	}

	if len(violations) > 0 {
		return NewValidationError("node", violations)
	}

	return nil
}

// ValidateLink checks a link's shape. Endpoint existence is the store's
// responsibility since it owns the arena.
func ValidateLink(l *Link) error {
	violations := structViolations(l)

	if l.Source != "" && l.Source == l.Target {
		violations = append(violations, "link endpoints must differ")
	}

	if len(violations) > 0 {
		return NewValidationError("link", violations)
	}

	return nil
}

// ValidateGroup checks a group's shape, including the minimum member count.
func ValidateGroup(g *Group) error {
	violations := structViolations(g)

	if len(violations) > 0 {
		return NewValidationError("group", violations)
	}

	return nil
}

// ValidateAnnotation checks an annotation's shape.
func ValidateAnnotation(a *Annotation) error {
	violations := structViolations(a)

	if a.Type != AnnotationTypeText && a.Type != AnnotationTypeArrow {
		violations = append(violations, fmt.Sprintf("unknown annotation type %q", a.Type))
	}

	if a.Type == AnnotationTypeText && a.Text == "" {
		violations = append(violations, "text annotation requires text")
	}

	if len(violations) > 0 {
		return NewValidationError("annotation", violations)
	}

	return nil
}
