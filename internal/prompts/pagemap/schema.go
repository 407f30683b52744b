package pagemap

import "github.com/pagedeck/pagedeck/internal/types"

// MappingSchema is the JSON schema for page mapping output.
var MappingSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "page_mapping",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pages": map[string]any{
					"type":        "array",
					"description": "One entry per requested page, in page order",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"page": map[string]any{
								"type":        "integer",
								"description": "Physical page number, counted from 1",
							},
							"included": map[string]any{
								"type":        "array",
								"description": "Question fragments on this page, empty if none",
								"items": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"type": map[string]any{
											"type":        "string",
											"enum":        types.QuestionTypeStrings(),
											"description": "Content type of the fragment",
										},
										"description": map[string]any{
											"type":        "string",
											"description": "Short description identifying the question",
										},
										"cross_id": map[string]any{
											"type":        []string{"string", "null"},
											"description": "Shared id for a question spanning pages, null if self-contained",
										},
									},
									"required":             []string{"type", "description", "cross_id"},
									"additionalProperties": false,
								},
							},
						},
						"required":             []string{"page", "included"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []string{"pages"},
			"additionalProperties": false,
		},
	},
}
