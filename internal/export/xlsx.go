package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pagedeck/pagedeck/internal/types"
)

const (
	questionsSheet = "Questions"
	sharedSheet    = "Shared"
	cardsSheet     = "Cards"
	deckSheet      = "Deck"
)

func writeXLSX(w io.Writer, out types.Output) error {
	f := excelize.NewFile()
	defer f.Close()

	switch data := out.Data.(type) {
	case *types.QuestionGroup:
		if err := questionWorkbook(f, data); err != nil {
			return err
		}
	case *types.Deck:
		if err := deckWorkbook(f, data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("xlsx: unsupported output %T", out.Data)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func questionWorkbook(f *excelize.File, g *types.QuestionGroup) error {
	if err := f.SetSheetName("Sheet1", questionsSheet); err != nil {
		return err
	}

	rows := [][]any{{"Position", "Form", "Text", "Options", "Answers", "Explanation"}}
	for _, q := range g.Questions {
		c := q.Common()
		rows = append(rows, []any{
			c.Position,
			string(q.Form()),
			c.Text,
			formatOptions(questionOptions(q)),
			formatAnswers(c.Answers),
			deref(c.Explanation),
		})
	}
	if err := writeRows(f, questionsSheet, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(questionsSheet, "A", "B", 16)
	_ = f.SetColWidth(questionsSheet, "C", "C", 60)
	_ = f.SetColWidth(questionsSheet, "D", "D", 40)
	_ = f.SetColWidth(questionsSheet, "E", "E", 20)
	_ = f.SetColWidth(questionsSheet, "F", "F", 48)

	a := g.Attributes
	if a.Text == "" && len(a.Options) == 0 && a.Explanation == nil {
		return nil
	}
	if _, err := f.NewSheet(sharedSheet); err != nil {
		return err
	}
	shared := [][]any{
		{"Field", "Value"},
		{"Text", a.Text},
		{"Options", formatOptions(a.Options)},
		{"Explanation", deref(a.Explanation)},
	}
	if err := writeRows(f, sharedSheet, shared); err != nil {
		return err
	}
	_ = f.SetColWidth(sharedSheet, "B", "B", 80)
	return nil
}

func deckWorkbook(f *excelize.File, d *types.Deck) error {
	if err := f.SetSheetName("Sheet1", cardsSheet); err != nil {
		return err
	}

	rows := [][]any{{"Word", "Translations", "Word Types", "Sentences", "Synonyms", "Antonyms", "Word Root", "Tags", "Notes"}}
	for _, card := range d.Cards {
		var translations, wordTypes, sentences, synonyms, antonyms []string
		for _, e := range card.TextContent.Explanations {
			translations = append(translations, e.Translations...)
			for _, wt := range e.WordTypes {
				wordTypes = append(wordTypes, string(wt))
			}
			sentences = append(sentences, e.Sentences...)
			synonyms = append(synonyms, e.Synonyms...)
			antonyms = append(antonyms, e.Antonyms...)
		}
		rows = append(rows, []any{
			card.Word,
			strings.Join(translations, "; "),
			strings.Join(unique(wordTypes), ", "),
			strings.Join(sentences, "\n"),
			strings.Join(synonyms, ", "),
			strings.Join(antonyms, ", "),
			deref(card.WordRoot),
			strings.Join(card.Tags, ", "),
			card.Notes,
		})
	}
	if err := writeRows(f, cardsSheet, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(cardsSheet, "A", "A", 20)
	_ = f.SetColWidth(cardsSheet, "B", "C", 28)
	_ = f.SetColWidth(cardsSheet, "D", "D", 60)

	if _, err := f.NewSheet(deckSheet); err != nil {
		return err
	}
	a := d.Attributes
	cardsCount := len(d.Cards)
	if a.CardsCount != nil {
		cardsCount = *a.CardsCount
	}
	meta := [][]any{
		{"Field", "Value"},
		{"Name", a.Name},
		{"Description", a.Description},
		{"Import Key", a.ImportKey},
		{"Language", deref(a.Language)},
		{"Cards", cardsCount},
		{"Source Pages", a.SourcePages},
		{"Created At", deref(a.CreatedAt)},
	}
	if err := writeRows(f, deckSheet, meta); err != nil {
		return err
	}
	_ = f.SetColWidth(deckSheet, "B", "B", 60)
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func questionOptions(q types.QuestionRecord) []types.Option {
	switch v := q.(type) {
	case *types.SingleSelect:
		return v.Attributes.Options
	case *types.MultiSelect:
		return v.Attributes.Options
	case *types.EMISingleSelect:
		return v.Attributes.Options
	default:
		return nil
	}
}

func formatOptions(opts []types.Option) string {
	lines := make([]string, 0, len(opts))
	for _, o := range opts {
		lines = append(lines, o.Symbol+". "+o.Text)
	}
	return strings.Join(lines, "\n")
}

// formatAnswers renders one accepted set per blank: "A" or "x | y; z".
func formatAnswers(answers [][]string) string {
	sets := make([]string, 0, len(answers))
	for _, set := range answers {
		sets = append(sets, strings.Join(set, " | "))
	}
	return strings.Join(sets, "; ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func unique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
