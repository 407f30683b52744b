package pipeline

import (
	"log/slog"

	"github.com/pagedeck/pagedeck/internal/prompts"
	deckprompt "github.com/pagedeck/pagedeck/internal/prompts/deck"
	"github.com/pagedeck/pagedeck/internal/prompts/hints"
	"github.com/pagedeck/pagedeck/internal/prompts/pagemap"
	"github.com/pagedeck/pagedeck/internal/prompts/question"
)

// NewPromptResolver returns a resolver with every stage prompt registered.
// An empty overrideDir disables on-disk overrides.
func NewPromptResolver(overrideDir string, logger *slog.Logger) *prompts.Resolver {
	r := prompts.NewResolver(overrideDir, logger)
	hints.RegisterPrompts(r)
	pagemap.RegisterPrompts(r)
	question.RegisterPrompts(r)
	deckprompt.RegisterPrompts(r)
	return r
}
