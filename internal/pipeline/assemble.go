package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pagedeck/pagedeck/internal/types"
)

// assembleQuestions orders the extracted questions by position and lifts EMI
// shared context to the group. Every EMI stem must share one option list;
// once lifted, the stems no longer carry their own copy.
func assembleQuestions(extractions []Extraction, logger *slog.Logger) (*types.QuestionGroup, error) {
	if len(extractions) == 0 {
		return nil, &StageError{Stage: StateAssembly, Err: ErrNoQuestions}
	}

	sorted := make([]Extraction, len(extractions))
	copy(sorted, extractions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Group.Position < sorted[j].Group.Position
	})

	group := &types.QuestionGroup{Questions: make([]types.QuestionRecord, 0, len(sorted))}
	var lifted *types.SharedContext

	for i, ex := range sorted {
		g := ex.Group
		if ex.Question == nil {
			return nil, &AssemblyError{CrossID: g.CrossID, Position: g.Position, Reason: "no question was extracted", Err: ErrMissingResult}
		}
		if i > 0 && sorted[i-1].Group.Position == g.Position {
			return nil, &AssemblyError{CrossID: g.CrossID, Position: g.Position, Reason: "duplicate position"}
		}
		if ex.Question.Form() != g.Type {
			return nil, &AssemblyError{
				CrossID:  g.CrossID,
				Position: g.Position,
				Reason:   fmt.Sprintf("extracted %s for a %s group", ex.Question.Form(), g.Type),
				Err:      ErrMixedTypes,
			}
		}

		if emi, ok := ex.Question.(*types.EMISingleSelect); ok && emi.Shared != nil {
			switch {
			case lifted == nil:
				lifted = emi.Shared
			case !sameOptions(lifted.Options, emi.Shared.Options):
				return nil, &AssemblyError{
					CrossID:  g.CrossID,
					Position: g.Position,
					Reason:   "shared option list differs from an earlier stem",
					Err:      ErrSharedContextConflict,
				}
			case lifted.Text != emi.Shared.Text:
				logger.Warn("keeping first shared lead-in; later stem differs",
					"cross_id", g.CrossID, "position", g.Position)
			}
		}

		if err := ex.Question.Validate(); err != nil {
			return nil, &AssemblyError{CrossID: g.CrossID, Position: g.Position, Reason: err.Error(), Err: err}
		}
		group.Questions = append(group.Questions, ex.Question)
	}

	if lifted != nil {
		group.Attributes.Text = lifted.Text
		group.Attributes.Options = lifted.Options
		group.Attributes.Explanation = lifted.Explanation
		for _, q := range group.Questions {
			if emi, ok := q.(*types.EMISingleSelect); ok && sameOptions(emi.Attributes.Options, lifted.Options) {
				emi.Attributes.Options = []types.Option{}
				if emi.Shared == nil {
					emi.Shared = lifted
				}
			}
		}
	}

	if err := group.Validate(); err != nil {
		return nil, &StageError{Stage: StateAssembly, Err: err}
	}
	return group, nil
}

// sameOptions compares option lists by symbol and text, in order.
func sameOptions(a, b []types.Option) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Symbol != b[i].Symbol || a[i].Text != b[i].Text {
			return false
		}
	}
	return true
}

// DeckMeta is the bookkeeping a deck carries beyond its cards.
type DeckMeta struct {
	Name      string
	ImportKey string
	Language  string
	Pages     types.PageRange
	CreatedAt time.Time
}

// assembleDeck concatenates cards in extraction order. Name and description
// fall back to what the model proposed.
func assembleDeck(extractions []Extraction, meta DeckMeta) (*types.Deck, error) {
	if len(extractions) == 0 {
		return nil, &StageError{Stage: StateAssembly, Err: ErrNoQuestions}
	}

	deck := &types.Deck{Type: types.DeckKind, Cards: []types.Card{}}
	for _, ex := range extractions {
		if ex.Deck == nil {
			return nil, &AssemblyError{CrossID: ex.Group.CrossID, Position: ex.Group.Position, Reason: "no cards were extracted", Err: ErrMissingResult}
		}
		if deck.Attributes.Name == "" {
			deck.Attributes.Name = ex.Deck.Name
		}
		if deck.Attributes.Description == "" {
			deck.Attributes.Description = ex.Deck.Description
		}
		deck.Cards = append(deck.Cards, ex.Deck.Cards...)
	}

	if meta.Name != "" {
		deck.Attributes.Name = meta.Name
	}
	deck.Attributes.ImportKey = meta.ImportKey
	deck.Attributes.SourcePages = meta.Pages.String()
	count := len(deck.Cards)
	deck.Attributes.CardsCount = &count
	if meta.Language != "" {
		lang := meta.Language
		deck.Attributes.Language = &lang
	}
	if !meta.CreatedAt.IsZero() {
		created := meta.CreatedAt.UTC().Format(time.RFC3339)
		deck.Attributes.CreatedAt = &created
	}
	return deck, nil
}
