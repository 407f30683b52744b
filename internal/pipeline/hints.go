package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pagedeck/pagedeck/internal/generation"
	"github.com/pagedeck/pagedeck/internal/prompts"
	"github.com/pagedeck/pagedeck/internal/prompts/hints"
	"github.com/pagedeck/pagedeck/internal/providers"
	"github.com/pagedeck/pagedeck/internal/types"
)

// DefaultHintConcurrency bounds parallel hint classification calls.
const DefaultHintConcurrency = 4

// HintClassifier tags each hint image with the content type it demonstrates.
type HintClassifier struct {
	gen         *generation.Client
	prompts     *prompts.Resolver
	concurrency int
	logger      *slog.Logger
}

// NewHintClassifier creates a classifier. concurrency <= 0 uses DefaultHintConcurrency.
func NewHintClassifier(gen *generation.Client, resolver *prompts.Resolver, concurrency int, logger *slog.Logger) *HintClassifier {
	if concurrency <= 0 {
		concurrency = DefaultHintConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HintClassifier{gen: gen, prompts: resolver, concurrency: concurrency, logger: logger}
}

// Classify returns one tag per image, index-aligned with images. The first
// failure cancels the remaining calls and no tags are returned.
func (h *HintClassifier) Classify(ctx context.Context, images []types.Image, scope Scope) ([]types.HintTag, error) {
	tags := make([]types.HintTag, len(images))
	if len(images) == 0 {
		return tags, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)

	for i, img := range images {
		g.Go(func() error {
			tag, err := h.classifyOne(gctx, i, len(images), img, scope)
			if err != nil {
				return &StageError{Stage: StateHintTagging, Unit: fmt.Sprintf("image %d", i), Err: err}
			}
			tags[i] = tag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	h.logger.Debug("hint images classified", "count", len(tags))
	return tags, nil
}

func (h *HintClassifier) classifyOne(ctx context.Context, index, total int, img types.Image, scope Scope) (types.HintTag, error) {
	rendered, err := hints.Render(h.prompts, hints.NewData(index, total, scope.Instruction))
	if err != nil {
		return types.HintTag{}, err
	}

	label := fmt.Sprintf("hint-%d", index)
	resp, m, err := generation.GenerateInto[hints.Response](ctx, h.gen, generation.Request{
		Label:     label,
		Stage:     string(StateHintTagging),
		RunID:     scope.RunID,
		System:    rendered.System,
		Prompt:    rendered.User,
		PromptCID: rendered.CID,
		Images: []providers.Attachment{{
			Name:     img.Name,
			MIMEType: img.MIMEType,
			Data:     img.Data,
		}},
		Schema: hints.ResponseFormat(),
	})
	scope.record(StateHintTagging, label, h.gen, m, err)
	if err != nil {
		return types.HintTag{}, err
	}

	qt, ok := types.ParseQuestionType(resp.Type)
	if !ok {
		return types.HintTag{}, fmt.Errorf("%w: %q", ErrUnknownType, resp.Type)
	}
	return types.HintTag{ImageIndex: index, Type: qt, Description: resp.Description}, nil
}
