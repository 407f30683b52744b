package deck

import "github.com/pagedeck/pagedeck/internal/types"

func stringList(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": description,
	}
}

// ExtractionSchema is the JSON schema for deck extraction output.
var ExtractionSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "deck_extraction",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":        map[string]any{"type": "string", "description": "Short deck name"},
				"description": map[string]any{"type": "string", "description": "One-sentence deck description"},
				"cards": map[string]any{
					"type":        "array",
					"description": "One card per headword, in document order",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"word": map[string]any{"type": "string", "description": "Headword as printed"},
							"text_content": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"explanations": map[string]any{
										"type":        "array",
										"description": "One entry per sense",
										"items": map[string]any{
											"type": "object",
											"properties": map[string]any{
												"translations": stringList("Translations of this sense"),
												"sentences":    stringList("Example sentences"),
												"synonyms":     stringList("Synonyms"),
												"antonyms":     stringList("Antonyms"),
												"similars":     stringList("Easily confused words"),
												"word_types": map[string]any{
													"type": "array",
													"items": map[string]any{
														"type": "string",
														"enum": types.WordTypeStrings(),
													},
													"description": "Grammatical roles of this sense",
												},
												"notes": map[string]any{
													"type":        []string{"string", "null"},
													"description": "Usage notes, null if none",
												},
											},
											"required": []string{
												"translations", "sentences", "synonyms", "antonyms",
												"similars", "word_types", "notes",
											},
											"additionalProperties": false,
										},
									},
								},
								"required":             []string{"explanations"},
								"additionalProperties": false,
							},
							"tags": stringList("Topic tags"),
							"word_root": map[string]any{
								"type":        []string{"string", "null"},
								"description": "Base form or root, null if same as word",
							},
							"notes": map[string]any{"type": "string", "description": "Notes about the word, empty if none"},
						},
						"required":             []string{"word", "text_content", "tags", "word_root", "notes"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []string{"name", "description", "cards"},
			"additionalProperties": false,
		},
	},
}
