package question

import (
	"github.com/pagedeck/pagedeck/internal/types"
)

func nullableString(description string) map[string]any {
	return map[string]any{
		"type":        []string{"string", "null"},
		"description": description,
	}
}

func stringList(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": description,
	}
}

func optionList() map[string]any {
	return map[string]any{
		"type":        "array",
		"description": "Options in printed order",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol":      map[string]any{"type": "string", "description": "Option label as printed (A, B, 1, i)"},
				"text":        map[string]any{"type": "string", "description": "Option text"},
				"latex":       nullableString("Option in LaTeX when it contains math, null otherwise"),
				"audio_url":   nullableString("Audio link for the option, null if none"),
				"image_url":   nullableString("Image link for the option, null if none"),
				"explanation": nullableString("Why this option is right or wrong, null if not printed"),
			},
			"required":             []string{"symbol", "text", "latex", "audio_url", "image_url", "explanation"},
			"additionalProperties": false,
		},
	}
}

// answerShape bounds the answer sets of one form. A negative max is unbounded.
type answerShape struct {
	minSets, maxSets     int
	minPerSet, maxPerSet int
}

var (
	oneSymbol    = answerShape{minSets: 1, maxSets: 1, minPerSet: 1, maxPerSet: 1}
	someSymbols  = answerShape{minSets: 1, maxSets: -1, minPerSet: 1, maxPerSet: -1}
	blankSets    = answerShape{minSets: 1, maxSets: -1, minPerSet: 1, maxPerSet: -1}
	noAnswerSets = answerShape{minSets: 0, maxSets: 0, minPerSet: 0, maxPerSet: -1}
)

func answerList(description string, shape answerShape) map[string]any {
	set := map[string]any{
		"type":     "array",
		"items":    map[string]any{"type": "string"},
		"minItems": shape.minPerSet,
	}
	if shape.maxPerSet >= 0 {
		set["maxItems"] = shape.maxPerSet
	}
	list := map[string]any{
		"type":        "array",
		"description": description,
		"items":       set,
		"minItems":    shape.minSets,
	}
	if shape.maxSets >= 0 {
		list["maxItems"] = shape.maxSets
	}
	return list
}

func sharedContext() map[string]any {
	return map[string]any{
		"anyOf": []any{
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":        map[string]any{"type": "string", "description": "Lead-in shared by all stems of the set"},
					"options":     optionList(),
					"explanation": nullableString("Explanation shared by the set, null if none"),
				},
				"required":             []string{"text", "options", "explanation"},
				"additionalProperties": false,
			},
			map[string]any{"type": "null"},
		},
		"description": "Option list and lead-in shared with the other stems of the set, null if not visible",
	}
}

// schemaFor builds the strict extraction schema for one question form.
func schemaFor(form types.QuestionType) map[string]any {
	properties := map[string]any{
		"text":        map[string]any{"type": "string", "description": "Question stem without its number"},
		"latex":       nullableString("Stem in LaTeX when it contains math, null otherwise"),
		"audio_urls":  stringList("Audio links, empty if none"),
		"image_url":   nullableString("Figure link, null if none"),
		"explanation": nullableString("Printed explanation, null if none"),
	}
	required := []string{"text", "latex", "audio_urls", "image_url", "explanation", "answers"}

	switch form {
	case types.SingleSelectType:
		properties["options"] = optionList()
		properties["answers"] = answerList("Exactly one list holding the one correct option symbol", oneSymbol)
		required = append(required, "options")
	case types.MultiSelectType:
		properties["options"] = optionList()
		properties["answers"] = answerList("One list holding every correct option symbol", someSymbols)
		required = append(required, "options")
	case types.EMISingleSelectType:
		properties["options"] = optionList()
		properties["answers"] = answerList("Exactly one list holding the one matching option symbol", oneSymbol)
		properties["shared"] = sharedContext()
		required = append(required, "options", "shared")
	case types.FillInType:
		properties["answers"] = answerList("Accepted answer sets; each set has one entry per blank, in blank order", blankSets)
	case types.ShortAnswerType:
		properties["answers"] = answerList("Always an empty list", noAnswerSets)
	}

	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   string(form) + "_question",
			"strict": true,
			"schema": map[string]any{
				"type":                 "object",
				"properties":           properties,
				"required":             required,
				"additionalProperties": false,
			},
		},
	}
}

// ExtractionSchemas holds the extraction schema for every question form.
var ExtractionSchemas = func() map[types.QuestionType]map[string]any {
	out := make(map[types.QuestionType]map[string]any)
	for _, form := range types.QuestionTypes {
		if form.IsQuestion() {
			out[form] = schemaFor(form)
		}
	}
	return out
}()
