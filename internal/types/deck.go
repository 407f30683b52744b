package types

// WordType tags the grammatical role of a vocabulary entry.
type WordType string

const (
	WordTypeNoun         WordType = "noun"
	WordTypeVerb         WordType = "verb"
	WordTypeAdjective    WordType = "adjective"
	WordTypeAdverb       WordType = "adverb"
	WordTypePronoun      WordType = "pronoun"
	WordTypePreposition  WordType = "preposition"
	WordTypeConjunction  WordType = "conjunction"
	WordTypeInterjection WordType = "interjection"
	WordTypeDeterminer   WordType = "determiner"
	WordTypeNumeral      WordType = "numeral"
	WordTypePhrase       WordType = "phrase"
	WordTypePhrasalVerb  WordType = "phrasal_verb"
	WordTypeIdiom        WordType = "idiom"
	WordTypeAbbreviation WordType = "abbreviation"
)

// WordTypes lists the accepted word-type tags in prompt order.
var WordTypes = []WordType{
	WordTypeNoun,
	WordTypeVerb,
	WordTypeAdjective,
	WordTypeAdverb,
	WordTypePronoun,
	WordTypePreposition,
	WordTypeConjunction,
	WordTypeInterjection,
	WordTypeDeterminer,
	WordTypeNumeral,
	WordTypePhrase,
	WordTypePhrasalVerb,
	WordTypeIdiom,
	WordTypeAbbreviation,
}

// WordTypeStrings returns the word-type names, for schema enums.
func WordTypeStrings() []string {
	out := make([]string, len(WordTypes))
	for i, t := range WordTypes {
		out[i] = string(t)
	}
	return out
}

// Explanation is one sense of a vocabulary word.
type Explanation struct {
	Translations []string   `json:"translations"`
	Sentences    []string   `json:"sentences"`
	Synonyms     []string   `json:"synonyms"`
	Antonyms     []string   `json:"antonyms"`
	Similars     []string   `json:"similars"`
	WordTypes    []WordType `json:"word_types"`
	Notes        *string    `json:"notes,omitempty"`
}

// TextContent groups the senses of a card.
type TextContent struct {
	Explanations []Explanation `json:"explanations"`
}

// Card is one vocabulary flashcard.
type Card struct {
	Word        string      `json:"word"`
	TextContent TextContent `json:"text_content"`
	Tags        []string    `json:"tags"`
	WordRoot    *string     `json:"word_root"`
	Notes       string      `json:"notes"`
}

// DeckAttributes carries the deck's import metadata.
type DeckAttributes struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImportKey   string  `json:"import_key"`
	CardsCount  *int    `json:"cards_count,omitempty"`
	Language    *string `json:"language"`
	SourcePages string  `json:"source_pages,omitempty"`
	CreatedAt   *string `json:"created_at"`
}

// DeckKind is the literal value of Deck.Type.
const DeckKind = "deck"

// Deck is the vocabulary counterpart of QuestionGroup. Card order is preserved as extracted.
type Deck struct {
	Type       string         `json:"type"`
	Attributes DeckAttributes `json:"attributes"`
	Cards      []Card         `json:"cards"`
}
