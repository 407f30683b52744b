package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pagedeck/pagedeck/internal/types"
)

// Group is one logical question assembled from page fragments. Fragments
// sharing a cross id merge into one group; fragments without one are singletons.
type Group struct {
	Type         types.QuestionType `json:"type"`
	CrossID      string             `json:"cross_id,omitempty"`
	Pages        types.PageRange    `json:"pages"`
	Descriptions []string           `json:"descriptions,omitempty"`
	Position     int                `json:"position"`
}

// Key identifies the group in labels and logs.
func (g Group) Key() string {
	if g.CrossID != "" {
		return g.CrossID
	}
	return fmt.Sprintf("p%d", g.Pages.Start)
}

// Description joins the distinct fragment descriptions.
func (g Group) Description() string {
	seen := make(map[string]bool, len(g.Descriptions))
	parts := make([]string, 0, len(g.Descriptions))
	for _, d := range g.Descriptions {
		d = strings.TrimSpace(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		parts = append(parts, d)
	}
	return strings.Join(parts, "; ")
}

// Label is the cache and trace label of the group's extraction call.
func (g Group) Label() string {
	if g.Type == types.DeckType {
		return fmt.Sprintf("deck-%s", g.Key())
	}
	return fmt.Sprintf("%s-%s-%d", g.Type, g.Key(), g.Position)
}

// unit names the group in stage errors.
func (g Group) unit() string {
	return fmt.Sprintf("group %s (position %d)", g.Key(), g.Position)
}

// GroupPages collapses page maps into groups in first-encounter order and
// assigns positions 1..n. Pages must already be in ascending order.
// Deck fragments are skipped; they belong to deck runs.
func GroupPages(pages []types.PageMap, logger *slog.Logger) ([]Group, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var groups []Group
	byCrossID := make(map[string]int)

	for _, page := range pages {
		for _, item := range page.Included {
			qt, ok := types.ParseQuestionType(item.Type)
			if !ok {
				return nil, &AssemblyError{
					CrossID:  item.CrossID,
					Position: len(groups) + 1,
					Reason:   fmt.Sprintf("page %d has item of unknown type %q", page.Page, item.Type),
					Err:      ErrUnknownType,
				}
			}
			if qt == types.DeckType {
				logger.Warn("skipping vocabulary fragment in question run",
					"page", page.Page, "cross_id", item.CrossID)
				continue
			}

			if item.CrossID != "" {
				if idx, ok := byCrossID[item.CrossID]; ok {
					g := &groups[idx]
					if g.Type != qt {
						return nil, &AssemblyError{
							CrossID:  g.CrossID,
							Position: g.Position,
							Reason:   fmt.Sprintf("page %d reports %s but the group is %s", page.Page, qt, g.Type),
							Err:      ErrMixedTypes,
						}
					}
					g.Pages = g.Pages.Extend(page.Page)
					g.Descriptions = append(g.Descriptions, item.Description)
					continue
				}
				byCrossID[item.CrossID] = len(groups)
			}

			groups = append(groups, Group{
				Type:         qt,
				CrossID:      item.CrossID,
				Pages:        types.SinglePage(page.Page),
				Descriptions: []string{item.Description},
				Position:     len(groups) + 1,
			})
		}
	}
	return groups, nil
}
