package llm

import "encoding/json"

// Schema is the abstract "Schema<T>" from spec §9, naming the structured
// output a caller (C3's SelectedContextsSchema, C4's
// SelectedMessagesSchema, C6's ExecutionPlanSchema) expects. The providers
// in this module do not read Request.OutputSchema and never set
// Response.Structured, so callers that find Structured empty decode
// Response.Text with Validate instead.
type Schema struct {
	// Name is a short identifier for the schema.
	Name string
	// JSONSchema is the parameter/object schema itself.
	JSONSchema map[string]any
	// Strict marks whether extra properties are to be rejected. Nothing
	// reads it; it defaults to false.
	Strict bool
}

// Validate unmarshals raw into a value of type T and returns
// json.Unmarshal's error unchanged. It checks only that raw decodes into
// T; it does not check raw against a Schema's JSONSchema.
func Validate[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

// SelectedContextsSchema is C3's selectRelevant structured-output contract.
var SelectedContextsSchema = Schema{
	Name: "selected_contexts",
	JSONSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"context_ids": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer"},
			},
		},
		"required": []string{"context_ids"},
	},
}

// SelectedMessagesSchema is C4's selectRelevantMessages structured-output
// contract.
var SelectedMessagesSchema = Schema{
	Name: "selected_messages",
	JSONSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message_ids": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer"},
			},
		},
		"required": []string{"message_ids"},
	},
}

// ExecutionPlanSchema is C6's planning structured-output contract.
var ExecutionPlanSchema = Schema{
	Name: "execution_plan",
	JSONSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tasks": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":          map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"tool_calls": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"tool": map[string]any{"type": "string"},
									"args": map[string]any{"type": "object"},
								},
							},
						},
						"dependencies": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
					},
					"required": []string{"id", "description"},
				},
			},
		},
		"required": []string{"tasks"},
	},
}
