package types

import (
	"encoding/json"
	"fmt"
)

// DocumentKind selects which output shape a pipeline run assembles.
type DocumentKind string

const (
	KindQuestions DocumentKind = "questions"
	KindDeck      DocumentKind = "deck"
)

// ParseDocumentKind converts a string to a DocumentKind, defaulting to questions.
func ParseDocumentKind(s string) (DocumentKind, error) {
	switch s {
	case "", string(KindQuestions):
		return KindQuestions, nil
	case string(KindDeck):
		return KindDeck, nil
	default:
		return "", fmt.Errorf("unknown document kind %q (want questions or deck)", s)
	}
}

// Output is the terminal artifact of a run: {data: QuestionGroup} or {data: Deck}.
type Output struct {
	Data any `json:"data"`
}

// QuestionGroup returns the payload if this is a question output.
func (o Output) QuestionGroup() (*QuestionGroup, bool) {
	g, ok := o.Data.(*QuestionGroup)
	return g, ok
}

// Deck returns the payload if this is a deck output.
func (o Output) Deck() (*Deck, bool) {
	d, ok := o.Data.(*Deck)
	return d, ok
}

// UnmarshalJSON decodes either payload, using the deck "type" literal to tell them apart.
func (o *Output) UnmarshalJSON(data []byte) error {
	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var peek struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw.Data, &peek); err != nil {
		return err
	}

	if peek.Type == DeckKind {
		var d Deck
		if err := json.Unmarshal(raw.Data, &d); err != nil {
			return fmt.Errorf("failed to decode deck: %w", err)
		}
		o.Data = &d
		return nil
	}

	var g QuestionGroup
	if err := json.Unmarshal(raw.Data, &g); err != nil {
		return fmt.Errorf("failed to decode question group: %w", err)
	}
	o.Data = &g
	return nil
}
