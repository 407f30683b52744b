// Package types holds the document, question and deck shapes shared by the
// pipeline, the prompts and the exporters.
// This package has no dependencies on other pagedeck packages to avoid import cycles.
package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPageRange is returned for page ranges that start below 1 or end before they start.
var ErrInvalidPageRange = errors.New("invalid page range")

// PageRange is an inclusive range of 1-indexed document pages.
// A single page is represented with Start == End.
type PageRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// SinglePage returns the range covering only page n.
func SinglePage(n int) PageRange {
	return PageRange{Start: n, End: n}
}

// NewPageRange returns a validated range covering start..end.
func NewPageRange(start, end int) (PageRange, error) {
	r := PageRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return PageRange{}, err
	}
	return r, nil
}

// ParsePageRange parses "7" or "3-9".
func ParsePageRange(s string) (PageRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PageRange{}, fmt.Errorf("%w: empty", ErrInvalidPageRange)
	}

	startStr, endStr, isPair := strings.Cut(s, "-")
	start, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil {
		return PageRange{}, fmt.Errorf("%w: %q", ErrInvalidPageRange, s)
	}
	if !isPair {
		r := SinglePage(start)
		return r, r.Validate()
	}

	end, err := strconv.Atoi(strings.TrimSpace(endStr))
	if err != nil {
		return PageRange{}, fmt.Errorf("%w: %q", ErrInvalidPageRange, s)
	}
	return NewPageRange(start, end)
}

// Validate checks that all pages are >= 1 and Start <= End.
func (r PageRange) Validate() error {
	if r.Start < 1 || r.End < 1 {
		return fmt.Errorf("%w: page numbers must be >= 1, got %s", ErrInvalidPageRange, r)
	}
	if r.Start > r.End {
		return fmt.Errorf("%w: start %d is after end %d", ErrInvalidPageRange, r.Start, r.End)
	}
	return nil
}

// IsSingle reports whether the range covers exactly one page.
func (r PageRange) IsSingle() bool {
	return r.Start == r.End
}

// Len returns the number of pages in the range.
func (r PageRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether page lies inside the range.
func (r PageRange) Contains(page int) bool {
	return page >= r.Start && page <= r.End
}

// Extend grows the range to include page.
func (r PageRange) Extend(page int) PageRange {
	if page < r.Start {
		r.Start = page
	}
	if page > r.End {
		r.End = page
	}
	return r
}

// String renders "7" or "3-9".
func (r PageRange) String() string {
	if r.IsSingle() {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Describe renders the range for prompts ("page 7", "pages 3 to 9").
func (r PageRange) Describe() string {
	if r.IsSingle() {
		return fmt.Sprintf("page %d", r.Start)
	}
	return fmt.Sprintf("pages %d to %d", r.Start, r.End)
}

// QuestionType is the content-kind tag used by hints, page items and question variants.
type QuestionType string

const (
	SingleSelectType    QuestionType = "single_select"
	MultiSelectType     QuestionType = "multi_select"
	FillInType          QuestionType = "fill_in"
	ShortAnswerType     QuestionType = "short_answer"
	EMISingleSelectType QuestionType = "emi_single_select"
	DeckType            QuestionType = "deck"
)

// QuestionTypes lists every known type in prompt/schema order.
var QuestionTypes = []QuestionType{
	SingleSelectType,
	MultiSelectType,
	FillInType,
	ShortAnswerType,
	EMISingleSelectType,
	DeckType,
}

// ParseQuestionType converts a string to a QuestionType.
// Returns false if the string is not recognized.
func ParseQuestionType(s string) (QuestionType, bool) {
	t := QuestionType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range QuestionTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// IsQuestion reports whether t produces a QuestionRecord (everything except deck).
func (t QuestionType) IsQuestion() bool {
	switch t {
	case SingleSelectType, MultiSelectType, FillInType, ShortAnswerType, EMISingleSelectType:
		return true
	default:
		return false
	}
}

// QuestionTypeStrings returns the type names, for schema enums.
func QuestionTypeStrings() []string {
	out := make([]string, len(QuestionTypes))
	for i, t := range QuestionTypes {
		out[i] = string(t)
	}
	return out
}

// HintTag is the classification of one auxiliary hint image.
type HintTag struct {
	ImageIndex  int          `json:"image_index"`
	Type        QuestionType `json:"type"`
	Description string       `json:"description"`
}

// PageItem is one question fragment detected on a page.
// An empty CrossID means the item is self-contained on its page.
type PageItem struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	CrossID     string `json:"cross_id,omitempty"`
}

// PageMap is the inventory of fragments detected on one page.
type PageMap struct {
	Page     int        `json:"page"`
	Included []PageItem `json:"included"`
}
