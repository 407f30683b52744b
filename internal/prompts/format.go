package prompts

import (
	"encoding/json"

	"github.com/pagedeck/pagedeck/internal/providers"
)

// ResponseFormat builds a provider response format from a schema map in the
// {"type": "json_schema", "json_schema": {...}} wrapper used by the stage packages.
func ResponseFormat(schema map[string]any) *providers.ResponseFormat {
	jsonSchema, _ := json.Marshal(schema["json_schema"])
	return &providers.ResponseFormat{
		Type:       "json_schema",
		JSONSchema: jsonSchema,
	}
}
