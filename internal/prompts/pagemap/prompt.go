// Package pagemap holds the prompts for mapping document pages to question fragments.
package pagemap

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
	SystemPromptKey = "pagemap.system"
	UserPromptKey   = "pagemap.user"
)

// Data feeds both page mapping templates.
type Data struct {
	Start       int
	End         int
	Range       string
	Hints       []types.HintTag
	Instruction string
	Types       []string
}

// NewData returns template data for mapping pages in r with the given hint context.
func NewData(r types.PageRange, hints []types.HintTag, instruction string) Data {
	return Data{
		Start:       r.Start,
		End:         r.End,
		Range:       r.Describe(),
		Hints:       hints,
		Instruction: instruction,
		Types:       types.QuestionTypeStrings(),
	}
}

// Response is the decoded model output.
type Response struct {
	Pages []Page `json:"pages"`
}

// Page is one page entry as returned by the model.
type Page struct {
	Page     int    `json:"page"`
	Included []Item `json:"included"`
}

// Item is one fragment. CrossID is null for self-contained questions.
type Item struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	CrossID     *string `json:"cross_id"`
}

// PageItem converts the fragment to its pipeline shape.
func (i Item) PageItem() types.PageItem {
	item := types.PageItem{Type: i.Type, Description: i.Description}
	if i.CrossID != nil {
		item.CrossID = *i.CrossID
	}
	return item
}

// RegisterPrompts registers the page mapping prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Page mapping system prompt - lists question fragments per page with cross-page ids",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Page mapping user prompt template with hint summary",
	})
}

// Render executes the page mapping templates through r.
func Render(r *prompts.Resolver, data Data) (prompts.Rendered, error) {
	return r.Render(SystemPromptKey, UserPromptKey, data)
}

// ResponseFormat returns the structured output format for page mapping.
func ResponseFormat() *providers.ResponseFormat {
	return prompts.ResponseFormat(MappingSchema)
}
