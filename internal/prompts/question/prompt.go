// Package question holds the prompts, schemas and response decoding for
// per-form question extraction.
package question

import (
	_ "embed"
	"fmt"

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
	SystemPromptKey = "question.system"
	UserPromptKey   = "question.user"
)

var fieldGuides = map[types.QuestionType]string{
	types.SingleSelectType: `- options: every option in printed order, with its printed symbol.
- answers: [[symbol]] with the one correct option symbol. Use the answer key if the document has one.`,
	types.MultiSelectType: `- options: every option in printed order, with its printed symbol.
- answers: [[symbol, symbol, ...]] with every correct option symbol in one list.`,
	types.FillInType: `- text: the stem with each blank kept as printed (underscores or brackets).
- answers: a list of accepted answer sets. Each set holds one entry per blank, in blank order. Add another set only for a genuinely different accepted combination.`,
	types.ShortAnswerType: `- answers: always []. Short answer questions are graded by hand.
- explanation: the model answer if the document prints one.`,
	types.EMISingleSelectType: `- This stem is one of several that share one option list and lead-in.
- options: the shared option list in printed order. Repeat it here even though it is shared.
- shared: the lead-in text, option list and any explanation shared by all stems of the set.
- answers: [[symbol]] with the one option that matches this stem.`,
}

// Data feeds both question templates.
type Data struct {
	Form        types.QuestionType
	FieldGuide  string
	Range       string
	Description string
	CrossID     string
	Position    int
	Instruction string
	Language    string
}

// NewData returns template data for extracting one form-typed question.
func NewData(form types.QuestionType, r types.PageRange, description, crossID string, position int, instruction, language string) Data {
	return Data{
		Form:        form,
		FieldGuide:  fieldGuides[form],
		Range:       r.Describe(),
		Description: description,
		CrossID:     crossID,
		Position:    position,
		Instruction: instruction,
		Language:    language,
	}
}

// RegisterPrompts registers the question prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Question extraction system prompt - field semantics per assessment form",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Question extraction user prompt template",
	})
}

// Render executes the question templates through r.
func Render(r *prompts.Resolver, data Data) (prompts.Rendered, error) {
	return r.Render(SystemPromptKey, UserPromptKey, data)
}

// ResponseFormat returns the structured output format for form.
func ResponseFormat(form types.QuestionType) (*providers.ResponseFormat, error) {
	schema, ok := ExtractionSchemas[form]
	if !ok {
		return nil, fmt.Errorf("no extraction schema for %q", form)
	}
	return prompts.ResponseFormat(schema), nil
}

// Response is the decoded model output for any question form. Fields that a
// form's schema does not carry stay zero.
type Response struct {
	Text        string               `json:"text"`
	Latex       *string              `json:"latex"`
	AudioURLs   []string             `json:"audio_urls"`
	ImageURL    *string              `json:"image_url"`
	Explanation *string              `json:"explanation"`
	Answers     [][]string           `json:"answers"`
	Options     []types.Option       `json:"options"`
	Shared      *types.SharedContext `json:"shared"`
}

// Record builds the typed question for form at position.
func (r Response) Record(form types.QuestionType, position int) (types.QuestionRecord, error) {
	q, err := types.NewQuestion(form)
	if err != nil {
		return nil, err
	}

	attrs := q.Common()
	attrs.Position = position
	attrs.Text = r.Text
	attrs.Latex = r.Latex
	attrs.AudioURLs = r.AudioURLs
	attrs.ImageURL = r.ImageURL
	attrs.Explanation = r.Explanation
	attrs.Answers = r.Answers
	if attrs.Answers == nil {
		attrs.Answers = [][]string{}
	}

	switch v := q.(type) {
	case *types.SingleSelect:
		v.Attributes.Options = r.Options
	case *types.MultiSelect:
		v.Attributes.Options = r.Options
	case *types.EMISingleSelect:
		v.Attributes.Options = r.Options
		v.Shared = r.Shared
	case *types.FillIn, *types.ShortAnswer:
	}
	return q, nil
}
