// Package deck holds the prompts and schema for vocabulary deck extraction.
package deck

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
	SystemPromptKey = "deck.system"
	UserPromptKey   = "deck.user"
)

// Data feeds both deck templates.
type Data struct {
	Range       string
	Description string
	Instruction string
	Language    string
	WordTypes   []string
}

// NewData returns template data for extracting cards from r.
func NewData(r types.PageRange, description, instruction, language string) Data {
	return Data{
		Range:       r.Describe(),
		Description: description,
		Instruction: instruction,
		Language:    language,
		WordTypes:   types.WordTypeStrings(),
	}
}

// Response is the decoded model output.
type Response struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Cards       []types.Card `json:"cards"`
}

// RegisterPrompts registers the deck prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Deck extraction system prompt - card fields and word-type tags",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Deck extraction user prompt template",
	})
}

// Render executes the deck templates through r.
func Render(r *prompts.Resolver, data Data) (prompts.Rendered, error) {
	return r.Render(SystemPromptKey, UserPromptKey, data)
}

// ResponseFormat returns the structured output format for deck extraction.
func ResponseFormat() *providers.ResponseFormat {
	return prompts.ResponseFormat(ExtractionSchema)
}
