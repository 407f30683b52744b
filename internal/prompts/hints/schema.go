package hints

import "github.com/pagedeck/pagedeck/internal/types"

// ClassificationSchema is the JSON schema for hint image classification output.
var ClassificationSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "hint_classification",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type": map[string]any{
					"type":        "string",
					"enum":        types.QuestionTypeStrings(),
					"description": "Content type the hint image demonstrates",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Short description of the visual layout of this content type",
				},
			},
			"required":             []string{"type", "description"},
			"additionalProperties": false,
		},
	},
}
