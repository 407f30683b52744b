package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidQuestion is wrapped by every QuestionRecord.Validate failure.
var ErrInvalidQuestion = errors.New("invalid question")

// QuestionRecord is one extracted question. The set of implementations is closed:
// *SingleSelect, *MultiSelect, *FillIn, *ShortAnswer and *EMISingleSelect.
type QuestionRecord interface {
	// Form returns the variant discriminator.
	Form() QuestionType
	// Common returns the attributes shared by every variant.
	Common() *QuestionAttributes
	// Validate checks the answer shape against the variant's semantics.
	Validate() error

	isQuestionRecord()
}

// QuestionAttributes are carried by every question variant.
type QuestionAttributes struct {
	Position       int          `json:"position"`
	Text           string       `json:"text"`
	Latex          *string      `json:"latex,omitempty"`
	AudioURLs      []string     `json:"audio_urls,omitempty"`
	ImageURL       *string      `json:"image_url,omitempty"`
	Explanation    *string      `json:"explanation,omitempty"`
	Answers        [][]string   `json:"answers"`
	AssessmentForm QuestionType `json:"assessment_form"`
}

// Option is one selectable choice.
type Option struct {
	Symbol      string  `json:"symbol"`
	Text        string  `json:"text"`
	Latex       *string `json:"latex,omitempty"`
	AudioURL    *string `json:"audio_url,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	Explanation *string `json:"explanation,omitempty"`
}

// OptionAttributes extends QuestionAttributes with an ordered option list.
type OptionAttributes struct {
	QuestionAttributes
	Options []Option `json:"options"`
}

// SharedContext is the stem text, option list and explanation an EMI item shares
// with its siblings. It is lifted to the group during assembly.
type SharedContext struct {
	Text        string   `json:"text,omitempty"`
	Options     []Option `json:"options,omitempty"`
	Explanation *string  `json:"explanation,omitempty"`
}

type SingleSelect struct {
	Attributes OptionAttributes `json:"attributes"`
}

type MultiSelect struct {
	Attributes OptionAttributes `json:"attributes"`
}

type FillIn struct {
	Attributes QuestionAttributes `json:"attributes"`
}

type ShortAnswer struct {
	Attributes QuestionAttributes `json:"attributes"`
}

// EMISingleSelect is an extended-matching item. Shared is only populated between
// extraction and assembly and is never serialized.
type EMISingleSelect struct {
	Attributes OptionAttributes `json:"attributes"`
	Shared     *SharedContext   `json:"-"`
}

func (*SingleSelect) isQuestionRecord()    {}
func (*MultiSelect) isQuestionRecord()     {}
func (*FillIn) isQuestionRecord()          {}
func (*ShortAnswer) isQuestionRecord()     {}
func (*EMISingleSelect) isQuestionRecord() {}

func (*SingleSelect) Form() QuestionType    { return SingleSelectType }
func (*MultiSelect) Form() QuestionType     { return MultiSelectType }
func (*FillIn) Form() QuestionType          { return FillInType }
func (*ShortAnswer) Form() QuestionType     { return ShortAnswerType }
func (*EMISingleSelect) Form() QuestionType { return EMISingleSelectType }

func (q *SingleSelect) Common() *QuestionAttributes    { return &q.Attributes.QuestionAttributes }
func (q *MultiSelect) Common() *QuestionAttributes     { return &q.Attributes.QuestionAttributes }
func (q *FillIn) Common() *QuestionAttributes          { return &q.Attributes }
func (q *ShortAnswer) Common() *QuestionAttributes     { return &q.Attributes }
func (q *EMISingleSelect) Common() *QuestionAttributes { return &q.Attributes.QuestionAttributes }

func (q *SingleSelect) Validate() error {
	if err := checkCommon(q); err != nil {
		return err
	}
	return checkSelection(q.Form(), q.Attributes.Answers, q.Attributes.Options, false)
}

func (q *MultiSelect) Validate() error {
	if err := checkCommon(q); err != nil {
		return err
	}
	return checkSelection(q.Form(), q.Attributes.Answers, q.Attributes.Options, true)
}

func (q *EMISingleSelect) Validate() error {
	if err := checkCommon(q); err != nil {
		return err
	}
	options := q.Attributes.Options
	if len(options) == 0 && q.Shared != nil {
		options = q.Shared.Options
	}
	return checkSelection(q.Form(), q.Attributes.Answers, options, false)
}

func (q *FillIn) Validate() error {
	if err := checkCommon(q); err != nil {
		return err
	}
	answers := q.Attributes.Answers
	if len(answers) == 0 {
		return fmt.Errorf("%w: fill_in needs at least one accepted answer set", ErrInvalidQuestion)
	}
	blanks := len(answers[0])
	for i, set := range answers {
		if len(set) == 0 {
			return fmt.Errorf("%w: fill_in answer set %d is empty", ErrInvalidQuestion, i)
		}
		if len(set) != blanks {
			return fmt.Errorf("%w: fill_in answer set %d has %d blanks, want %d", ErrInvalidQuestion, i, len(set), blanks)
		}
	}
	return nil
}

func (q *ShortAnswer) Validate() error {
	if err := checkCommon(q); err != nil {
		return err
	}
	if len(q.Attributes.Answers) != 0 {
		return fmt.Errorf("%w: short_answer must not carry answers", ErrInvalidQuestion)
	}
	return nil
}

func checkCommon(q QuestionRecord) error {
	attrs := q.Common()
	if attrs.AssessmentForm != q.Form() {
		return fmt.Errorf("%w: assessment_form %q does not match %q", ErrInvalidQuestion, attrs.AssessmentForm, q.Form())
	}
	if attrs.Position < 1 {
		return fmt.Errorf("%w: position must be positive, got %d", ErrInvalidQuestion, attrs.Position)
	}
	return nil
}

func checkSelection(form QuestionType, answers [][]string, options []Option, multi bool) error {
	if len(options) == 0 {
		return fmt.Errorf("%w: %s has no options", ErrInvalidQuestion, form)
	}
	symbols := make(map[string]bool, len(options))
	for _, o := range options {
		symbols[o.Symbol] = true
	}

	if len(answers) == 0 {
		return fmt.Errorf("%w: %s has no answer", ErrInvalidQuestion, form)
	}
	if !multi && len(answers) != 1 {
		return fmt.Errorf("%w: %s has %d answer sets, want 1", ErrInvalidQuestion, form, len(answers))
	}
	for i, set := range answers {
		switch {
		case len(set) == 0:
			return fmt.Errorf("%w: %s answer set %d is empty", ErrInvalidQuestion, form, i)
		case !multi && len(set) != 1:
			return fmt.Errorf("%w: %s answer set %d selects %d options, want 1", ErrInvalidQuestion, form, i, len(set))
		}
		for _, s := range set {
			if !symbols[s] {
				return fmt.Errorf("%w: %s answer %q is not an option symbol", ErrInvalidQuestion, form, s)
			}
		}
	}
	return nil
}

// NewQuestion returns an empty record for form with AssessmentForm already set.
func NewQuestion(form QuestionType) (QuestionRecord, error) {
	var q QuestionRecord
	switch form {
	case SingleSelectType:
		q = &SingleSelect{}
	case MultiSelectType:
		q = &MultiSelect{}
	case FillInType:
		q = &FillIn{}
	case ShortAnswerType:
		q = &ShortAnswer{}
	case EMISingleSelectType:
		q = &EMISingleSelect{}
	default:
		return nil, fmt.Errorf("%w: unknown assessment form %q", ErrInvalidQuestion, form)
	}
	q.Common().AssessmentForm = form
	return q, nil
}

// DecodeQuestion decodes a serialized {"attributes": {...}} record using its
// assessment_form discriminator.
func DecodeQuestion(data []byte) (QuestionRecord, error) {
	var peek struct {
		Attributes struct {
			AssessmentForm QuestionType `json:"assessment_form"`
		} `json:"attributes"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, fmt.Errorf("failed to read assessment_form: %w", err)
	}
	q, err := NewQuestion(peek.Attributes.AssessmentForm)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, q); err != nil {
		return nil, fmt.Errorf("failed to decode %s question: %w", peek.Attributes.AssessmentForm, err)
	}
	return q, nil
}

// GroupAttributes is context shared by every question in a group.
type GroupAttributes struct {
	Text        string   `json:"text,omitempty"`
	AudioURLs   []string `json:"audio_urls,omitempty"`
	ImageURL    *string  `json:"image_url,omitempty"`
	Explanation *string  `json:"explanation,omitempty"`
	Options     []Option `json:"options,omitempty"`
}

// QuestionGroup is the assembled, position-ordered set of questions from one document.
type QuestionGroup struct {
	Attributes GroupAttributes  `json:"attributes"`
	Questions  []QuestionRecord `json:"questions"`
}

// SortByPosition orders questions by ascending position.
func (g *QuestionGroup) SortByPosition() {
	sort.SliceStable(g.Questions, func(i, j int) bool {
		return g.Questions[i].Common().Position < g.Questions[j].Common().Position
	})
}

// Validate checks the group is non-empty, strictly ordered and every question is valid.
func (g *QuestionGroup) Validate() error {
	if len(g.Questions) == 0 {
		return fmt.Errorf("%w: group has no questions", ErrInvalidQuestion)
	}
	for i, q := range g.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", q.Common().Position, err)
		}
		if i > 0 && g.Questions[i-1].Common().Position >= q.Common().Position {
			return fmt.Errorf("%w: positions %d and %d are not strictly increasing",
				ErrInvalidQuestion, g.Questions[i-1].Common().Position, q.Common().Position)
		}
	}
	return nil
}

// UnmarshalJSON decodes questions through their assessment_form discriminator.
func (g *QuestionGroup) UnmarshalJSON(data []byte) error {
	var raw struct {
		Attributes GroupAttributes   `json:"attributes"`
		Questions  []json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Attributes = raw.Attributes
	g.Questions = make([]QuestionRecord, 0, len(raw.Questions))
	for i, rq := range raw.Questions {
		q, err := DecodeQuestion(rq)
		if err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
		g.Questions = append(g.Questions, q)
	}
	return nil
}
