package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pagedeck/pagedeck/internal/generation"
	"github.com/pagedeck/pagedeck/internal/prompts"
	"github.com/pagedeck/pagedeck/internal/prompts/pagemap"
	"github.com/pagedeck/pagedeck/internal/providers"
	"github.com/pagedeck/pagedeck/internal/types"
)

// PageMapper inventories question fragments across a page range in one call,
// so that fragments continuing onto later pages can share a cross id.
type PageMapper struct {
	gen     *generation.Client
	prompts *prompts.Resolver
	logger  *slog.Logger
}

// NewPageMapper creates a page mapper.
func NewPageMapper(gen *generation.Client, resolver *prompts.Resolver, logger *slog.Logger) *PageMapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageMapper{gen: gen, prompts: resolver, logger: logger}
}

// MapPages returns exactly one PageMap per page of r, in ascending order.
func (p *PageMapper) MapPages(ctx context.Context, doc *types.Document, r types.PageRange, hintTags []types.HintTag, scope Scope) ([]types.PageMap, error) {
	fail := func(err error) error {
		return &StageError{Stage: StatePageAnalysis, Unit: "pages " + r.String(), Err: err}
	}

	if doc == nil {
		return nil, fail(ErrNoDocument)
	}
	if err := r.Validate(); err != nil {
		return nil, fail(err)
	}

	rendered, err := pagemap.Render(p.prompts, pagemap.NewData(r, hintTags, scope.Instruction))
	if err != nil {
		return nil, fail(err)
	}

	label := fmt.Sprintf("pagemap-%d-%d", r.Start, r.End)
	resp, m, err := generation.GenerateInto[pagemap.Response](ctx, p.gen, generation.Request{
		Label:     label,
		Stage:     string(StatePageAnalysis),
		RunID:     scope.RunID,
		System:    rendered.System,
		Prompt:    rendered.User,
		PromptCID: rendered.CID,
		Document:  documentAttachment(doc),
		Schema:    pagemap.ResponseFormat(),
	})
	scope.record(StatePageAnalysis, label, p.gen, m, err)
	if err != nil {
		return nil, fail(err)
	}

	return normalizePages(r, resp.Pages, p.logger), nil
}

// normalizePages fills gaps with empty maps, drops pages outside r and merges
// duplicate page entries in the order they were returned.
func normalizePages(r types.PageRange, pages []pagemap.Page, logger *slog.Logger) []types.PageMap {
	out := make([]types.PageMap, r.Len())
	for i := range out {
		out[i] = types.PageMap{Page: r.Start + i, Included: []types.PageItem{}}
	}

	for _, pg := range pages {
		if !r.Contains(pg.Page) {
			logger.Warn("dropping page outside requested range", "page", pg.Page, "page_range", r.String())
			continue
		}
		slot := &out[pg.Page-r.Start]
		for _, item := range pg.Included {
			slot.Included = append(slot.Included, item.PageItem())
		}
	}
	return out
}

func documentAttachment(doc *types.Document) *providers.Attachment {
	return &providers.Attachment{
		Name:     doc.Name,
		MIMEType: doc.MIMEType,
		Data:     doc.Data,
	}
}
