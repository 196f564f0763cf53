package graph

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/flowdeck/pkg/models"
)

// documentSchema is the structural contract for a flowchart document. It
// guards against malformed uploads before entity-level validation runs.
var documentSchema = map[string]any{
	"type":     "object",
	"required": []any{"nodes", "links"},
	"properties": map[string]any{
		"nodes": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "name", "type"},
				"properties": map[string]any{
					"id":   map[string]any{"type": "string", "minLength": 1},
					"name": map[string]any{"type": "string", "minLength": 1},
					"type": map[string]any{"type": "string"},
					"x":    map[string]any{"type": "number"},
					"y":    map[string]any{"type": "number"},
				},
			},
		},
		"links": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"source", "target"},
				"properties": map[string]any{
					"source": map[string]any{"type": "string", "minLength": 1},
					"target": map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
		"groups": map[string]any{
			"type": []any{"array", "null"},
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "nodeIds"},
				"properties": map[string]any{
					"id":      map[string]any{"type": "string", "minLength": 1},
					"nodeIds": map[string]any{"type": "array", "minItems": float64(models.MinGroupSize)},
				},
			},
		},
		"annotations": map[string]any{
			"type": []any{"array", "null"},
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "type"},
			},
		},
	},
}

// ValidateDocument checks the document against the JSON schema and returns a
// ValidationError listing every schema violation.
func ValidateDocument(doc *models.Document) error {
	schemaLoader := gojsonschema.NewGoLoader(documentSchema)
	dataLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("document schema validation failed: %w", err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, strings.TrimSpace(desc.String()))
	}

	return models.NewValidationError("document", violations)
}
