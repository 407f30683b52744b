package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pagedeck/pagedeck/internal/generation"
	"github.com/pagedeck/pagedeck/internal/metrics"
	"github.com/pagedeck/pagedeck/internal/prompts"
	deckprompt "github.com/pagedeck/pagedeck/internal/prompts/deck"
	"github.com/pagedeck/pagedeck/internal/prompts/question"
	"github.com/pagedeck/pagedeck/internal/types"
)

// ExtractInput is everything an extractor needs for one group.
type ExtractInput struct {
	Document    *types.Document
	Pages       types.PageRange
	Description string
	CrossID     string
	Position    int
	Instruction string
	Language    string
	RunID       string
}

// Extraction is the result of one group. Exactly one of Question and Deck is set.
type Extraction struct {
	Group    Group
	Question types.QuestionRecord
	Deck     *deckprompt.Response
}

// Extractor turns one group into a record with a single generation call.
type Extractor interface {
	Type() types.QuestionType
	Extract(ctx context.Context, in ExtractInput) (Extraction, metrics.CallMetrics, error)
}

// QuestionExtractor extracts one question of a fixed form.
type QuestionExtractor struct {
	form    types.QuestionType
	gen     *generation.Client
	prompts *prompts.Resolver
}

// NewQuestionExtractor creates an extractor for form.
func NewQuestionExtractor(form types.QuestionType, gen *generation.Client, resolver *prompts.Resolver) (*QuestionExtractor, error) {
	if !form.IsQuestion() {
		return nil, fmt.Errorf("%w: %s", ErrNoExtractor, form)
	}
	return &QuestionExtractor{form: form, gen: gen, prompts: resolver}, nil
}

func (e *QuestionExtractor) Type() types.QuestionType { return e.form }

// Extract runs one call labelled {type}-{crossId}-{position}.
func (e *QuestionExtractor) Extract(ctx context.Context, in ExtractInput) (Extraction, metrics.CallMetrics, error) {
	group := Group{Type: e.form, CrossID: in.CrossID, Pages: in.Pages, Position: in.Position}
	var m metrics.CallMetrics

	rf, err := question.ResponseFormat(e.form)
	if err != nil {
		return Extraction{}, m, err
	}
	rendered, err := question.Render(e.prompts, question.NewData(
		e.form, in.Pages, in.Description, in.CrossID, in.Position, in.Instruction, in.Language))
	if err != nil {
		return Extraction{}, m, err
	}

	resp, m, err := generation.GenerateInto[question.Response](ctx, e.gen, generation.Request{
		Label:     group.Label(),
		Stage:     string(StateGroupDispatch),
		RunID:     in.RunID,
		System:    rendered.System,
		Prompt:    rendered.User,
		PromptCID: rendered.CID,
		Document:  documentAttachment(in.Document),
		Schema:    rf,
		Check:     e.check(in.Position),
	})
	if err != nil {
		return Extraction{}, m, err
	}

	q, err := resp.Record(e.form, in.Position)
	if err != nil {
		return Extraction{}, m, err
	}
	return Extraction{Group: group, Question: q}, m, nil
}

// check rejects a response whose record breaks the form's answer rules, so it
// fails the call instead of landing in the cache.
func (e *QuestionExtractor) check(position int) func(json.RawMessage) error {
	return func(raw json.RawMessage) error {
		var resp question.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return err
		}
		q, err := resp.Record(e.form, position)
		if err != nil {
			return err
		}
		return q.Validate()
	}
}

// DeckExtractor extracts vocabulary cards from a page range.
type DeckExtractor struct {
	gen     *generation.Client
	prompts *prompts.Resolver
}

// NewDeckExtractor creates a deck extractor.
func NewDeckExtractor(gen *generation.Client, resolver *prompts.Resolver) *DeckExtractor {
	return &DeckExtractor{gen: gen, prompts: resolver}
}

func (e *DeckExtractor) Type() types.QuestionType { return types.DeckType }

// Extract runs one call labelled deck-{crossId}.
func (e *DeckExtractor) Extract(ctx context.Context, in ExtractInput) (Extraction, metrics.CallMetrics, error) {
	group := Group{Type: types.DeckType, CrossID: in.CrossID, Pages: in.Pages, Position: in.Position}
	var m metrics.CallMetrics

	rendered, err := deckprompt.Render(e.prompts, deckprompt.NewData(in.Pages, in.Description, in.Instruction, in.Language))
	if err != nil {
		return Extraction{}, m, err
	}

	resp, m, err := generation.GenerateInto[deckprompt.Response](ctx, e.gen, generation.Request{
		Label:     group.Label(),
		Stage:     string(StateGroupDispatch),
		RunID:     in.RunID,
		System:    rendered.System,
		Prompt:    rendered.User,
		PromptCID: rendered.CID,
		Document:  documentAttachment(in.Document),
		Schema:    deckprompt.ResponseFormat(),
	})
	if err != nil {
		return Extraction{}, m, err
	}
	return Extraction{Group: group, Deck: &resp}, m, nil
}

// NewExtractors returns an extractor for every content type.
func NewExtractors(gen *generation.Client, resolver *prompts.Resolver) map[types.QuestionType]Extractor {
	out := make(map[types.QuestionType]Extractor, len(types.QuestionTypes))
	for _, qt := range types.QuestionTypes {
		if qt == types.DeckType {
			out[qt] = NewDeckExtractor(gen, resolver)
			continue
		}
		// Cannot fail: qt.IsQuestion() holds for every other type.
		e, _ := NewQuestionExtractor(qt, gen, resolver)
		out[qt] = e
	}
	return out
}
