package pipeline

import (
	"errors"
	"testing"

	"github.com/pagedeck/pagedeck/internal/prompts/pagemap"
	"github.com/pagedeck/pagedeck/internal/types"
)

func TestGroupPagesMergesCrossID(t *testing.T) {
	pages := []types.PageMap{
		{Page: 2, Included: []types.PageItem{{Type: "single_select", Description: "Q1 start", CrossID: "q1"}}},
		{Page: 3, Included: []types.PageItem{{Type: "single_select", Description: "Q1 options", CrossID: "q1"}}},
		{Page: 4, Included: []types.PageItem{{Type: "fill_in", Description: "Q2"}}},
	}

	groups, err := GroupPages(pages, nil)
	if err != nil {
		t.Fatalf("GroupPages() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("GroupPages() = %d groups, want 2", len(groups))
	}

	if groups[0].CrossID != "q1" || groups[0].Pages != (types.PageRange{Start: 2, End: 3}) {
		t.Errorf("group 0 = %+v, want q1 spanning 2-3", groups[0])
	}
	if groups[0].Description() != "Q1 start; Q1 options" {
		t.Errorf("group 0 description = %q", groups[0].Description())
	}
	if groups[1].CrossID != "" || groups[1].Pages != types.SinglePage(4) {
		t.Errorf("group 1 = %+v, want singleton on page 4", groups[1])
	}
	if groups[0].Position != 1 || groups[1].Position != 2 {
		t.Errorf("positions = %d, %d, want 1, 2", groups[0].Position, groups[1].Position)
	}
}

func TestGroupPagesFirstEncounterOrder(t *testing.T) {
	// q2 starts on page 1 after q1 but q1 continues on page 2; positions follow first sighting.
	pages := []types.PageMap{
		{Page: 1, Included: []types.PageItem{
			{Type: "short_answer", CrossID: "q1"},
			{Type: "short_answer"},
			{Type: "multi_select", CrossID: "q2"},
		}},
		{Page: 2, Included: []types.PageItem{
			{Type: "multi_select", CrossID: "q2"},
			{Type: "short_answer", CrossID: "q1"},
		}},
	}

	groups, err := GroupPages(pages, nil)
	if err != nil {
		t.Fatalf("GroupPages() error = %v", err)
	}
	want := []string{"q1", "p1", "q2"}
	if len(groups) != len(want) {
		t.Fatalf("GroupPages() = %d groups, want %d", len(groups), len(want))
	}
	for i, g := range groups {
		if g.Key() != want[i] || g.Position != i+1 {
			t.Errorf("group %d = %s@%d, want %s@%d", i, g.Key(), g.Position, want[i], i+1)
		}
	}
}

func TestGroupPagesMixedTypes(t *testing.T) {
	pages := []types.PageMap{
		{Page: 1, Included: []types.PageItem{{Type: "single_select", CrossID: "q7"}}},
		{Page: 2, Included: []types.PageItem{{Type: "fill_in", CrossID: "q7"}}},
	}

	_, err := GroupPages(pages, nil)
	var ae *AssemblyError
	if !errors.As(err, &ae) {
		t.Fatalf("GroupPages() error = %v, want *AssemblyError", err)
	}
	if ae.CrossID != "q7" || ae.Position != 1 || !errors.Is(err, ErrMixedTypes) {
		t.Errorf("AssemblyError = %+v", ae)
	}
}

func TestGroupPagesUnknownType(t *testing.T) {
	pages := []types.PageMap{{Page: 1, Included: []types.PageItem{{Type: "essay"}}}}
	if _, err := GroupPages(pages, nil); !errors.Is(err, ErrUnknownType) {
		t.Errorf("GroupPages() error = %v, want ErrUnknownType", err)
	}
}

func TestGroupPagesSkipsDeckFragments(t *testing.T) {
	pages := []types.PageMap{{Page: 1, Included: []types.PageItem{{Type: "deck"}, {Type: "fill_in"}}}}
	groups, err := GroupPages(pages, nil)
	if err != nil {
		t.Fatalf("GroupPages() error = %v", err)
	}
	if len(groups) != 1 || groups[0].Type != types.FillInType || groups[0].Position != 1 {
		t.Errorf("GroupPages() = %+v", groups)
	}
}

func TestGroupLabel(t *testing.T) {
	tests := []struct {
		group Group
		want  string
	}{
		{Group{Type: types.SingleSelectType, CrossID: "q1", Position: 1}, "single_select-q1-1"},
		{Group{Type: types.FillInType, Pages: types.SinglePage(4), Position: 2}, "fill_in-p4-2"},
		{Group{Type: types.DeckType, CrossID: "1-3", Position: 1}, "deck-1-3"},
	}
	for _, tt := range tests {
		if got := tt.group.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}

func TestNormalizePages(t *testing.T) {
	r := types.PageRange{Start: 3, End: 6}
	q := "q1"
	in := []pagemap.Page{
		{Page: 5, Included: []pagemap.Item{{Type: "fill_in", Description: "b"}}},
		{Page: 3, Included: []pagemap.Item{{Type: "single_select", Description: "a", CrossID: &q}}},
		{Page: 9, Included: []pagemap.Item{{Type: "fill_in", Description: "outside"}}},
		{Page: 5, Included: []pagemap.Item{{Type: "short_answer", Description: "c"}}},
	}

	got := normalizePages(r, in, discardLogger())
	if len(got) != 4 {
		t.Fatalf("normalizePages() = %d pages, want 4", len(got))
	}
	for i, pm := range got {
		if pm.Page != 3+i {
			t.Errorf("page %d = %d, want %d", i, pm.Page, 3+i)
		}
		if pm.Included == nil {
			t.Errorf("page %d Included is nil, want empty list", pm.Page)
		}
	}
	if got[0].Included[0].CrossID != "q1" {
		t.Errorf("page 3 cross id = %q", got[0].Included[0].CrossID)
	}
	if len(got[1].Included) != 0 || len(got[3].Included) != 0 {
		t.Error("pages 4 and 6 should be empty")
	}
	if len(got[2].Included) != 2 || got[2].Included[0].Description != "b" || got[2].Included[1].Description != "c" {
		t.Errorf("page 5 = %+v, want merged b, c", got[2].Included)
	}
}
