// Package hints holds the prompts for classifying auxiliary hint images.
package hints

import (
	_ "embed"

	"github.com/pagedeck/pagedeck/internal/prompts"
	"github.com/pagedeck/pagedeck/internal/providers"
	"github.com/pagedeck/pagedeck/internal/types"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

// Prompt keys
const (
	SystemPromptKey = "hints.system"
	UserPromptKey   = "hints.user"
)

// Data feeds both hint templates.
type Data struct {
	Index       int
	Total       int
	Instruction string
	Types       []string
}

// NewData returns template data for the hint image at index (zero-based).
func NewData(index, total int, instruction string) Data {
	return Data{
		Index:       index,
		Total:       total,
		Instruction: instruction,
		Types:       types.QuestionTypeStrings(),
	}
}

// Response is the decoded model output for one hint image.
type Response struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// RegisterPrompts registers the hint prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Hint classification system prompt - tags a screenshot with its content type",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Hint classification user prompt template",
	})
}

// Render executes the hint templates through r.
func Render(r *prompts.Resolver, data Data) (prompts.Rendered, error) {
	return r.Render(SystemPromptKey, UserPromptKey, data)
}

// ResponseFormat returns the structured output format for hint classification.
func ResponseFormat() *providers.ResponseFormat {
	return prompts.ResponseFormat(ClassificationSchema)
}
