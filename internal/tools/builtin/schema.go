package builtin

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// schemaFor reflects a Go struct into the map[string]any jsonSchema shape
// tools.Tool.JSONSchema returns, using invopop/jsonschema the way a
// struct-tagged args type is normally turned into a tool parameter
// contract.
func schemaFor(v any) map[string]any {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(v)
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m
}

func decodeArgs(args map[string]any, v any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
