package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pagedeck/pagedeck/internal/generation"
	"github.com/pagedeck/pagedeck/internal/providers"
	"github.com/pagedeck/pagedeck/internal/types"
)

func TestRunSingleSelectMergedAcrossPages(t *testing.T) {
	model := newFakeModel()
	model.reply("page_mapping", `{"pages":[
		{"page":1,"included":[{"type":"single_select","description":"Q1","cross_id":"q1"}]},
		{"page":2,"included":[{"type":"single_select","description":"Q1 options","cross_id":"q1"}]}]}`)
	model.reply("single_select_question", singleSelectJSON("2+2?"))
	o := newTestOrchestrator(t, model)

	res, err := o.Run(context.Background(), Request{
		Document: testDocument(2),
		Pages:    pageRange(t, 1, 2),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	calls := model.calls("single_select_question")
	if len(calls) != 1 {
		t.Fatalf("single_select extraction calls = %d, want 1", len(calls))
	}
	if !promptHas(calls[0], "pages 1 to 2") || !promptHas(calls[0], "position 1") {
		t.Errorf("extraction prompt = %q, want merged range at position 1", calls[0].Prompt)
	}
	if calls[0].Document == nil {
		t.Error("extraction request has no document attached")
	}

	group, ok := res.Output.QuestionGroup()
	if !ok {
		t.Fatalf("Output = %T, want question group", res.Output.Data)
	}
	if len(group.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(group.Questions))
	}
	q := group.Questions[0].(*types.SingleSelect)
	if q.Attributes.Position != 1 || q.Attributes.Text != "2+2?" {
		t.Errorf("question = %+v", q.Attributes.QuestionAttributes)
	}
	if len(res.Groups) != 1 || res.Groups[0].Pages != (types.PageRange{Start: 1, End: 2}) {
		t.Errorf("Groups = %+v", res.Groups)
	}
}

func TestRunTransitions(t *testing.T) {
	model := newFakeModel()
	model.reply("page_mapping", `{"pages":[{"page":1,"included":[{"type":"single_select","description":"Q1","cross_id":null}]}]}`)
	model.reply("single_select_question", singleSelectJSON("x"))
	o := newTestOrchestrator(t, model)

	res, err := o.Run(context.Background(), Request{Document: testDocument(1), Pages: types.SinglePage(1)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []State{StateInit, StateHintTagging, StatePageAnalysis, StateGroupDispatch, StateAssembly, StateDone}
	if len(res.Transitions) != len(want) {
		t.Fatalf("transitions = %v", res.Transitions)
	}
	for i, tr := range res.Transitions {
		if tr.State != want[i] {
			t.Errorf("transition %d = %s, want %s", i, tr.State, want[i])
		}
	}
}

func TestRunOrdersByPosition(t *testing.T) {
	model := newFakeModel()
	model.reply("page_mapping", `{"pages":[
		{"page":1,"included":[
			{"type":"single_select","description":"first","cross_id":null},
			{"type":"single_select","description":"second","cross_id":null},
			{"type":"single_select","description":"third","cross_id":null}]}]}`)
	// Later positions answer first.
	model.on("single_select_question", func(req *providers.Request) (string, error) {
		switch {
		case promptHas(req, "Question: first"):
			time.Sleep(30 * time.Millisecond)
			return singleSelectJSON("first"), nil
		case promptHas(req, "Question: second"):
			time.Sleep(10 * time.Millisecond)
			return singleSelectJSON("second"), nil
		default:
			return singleSelectJSON("third"), nil
		}
	})
	o := newTestOrchestrator(t, model)

	res, err := o.Run(context.Background(), Request{Document: testDocument(1), Pages: types.SinglePage(1)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	group, _ := res.Output.QuestionGroup()
	want := []string{"first", "second", "third"}
	for i, q := range group.Questions {
		attrs := q.Common()
		if attrs.Position != i+1 || attrs.Text != want[i] {
			t.Errorf("question %d = %d/%q, want %d/%q", i, attrs.Position, attrs.Text, i+1, want[i])
		}
		if i > 0 && group.Questions[i-1].Common().Position >= attrs.Position {
			t.Error("positions are not strictly increasing")
		}
	}
}

func TestRunRejectsInvalidRangeBeforeAnyCall(t *testing.T) {
	tests := []struct {
		name  string
		pages types.PageRange
	}{
		{"start after end", types.PageRange{Start: 5, End: 3}},
		{"page zero", types.SinglePage(0)},
		{"past last page", types.PageRange{Start: 2, End: 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := newFakeModel()
			o := newTestOrchestrator(t, model)

			_, err := o.Run(context.Background(), Request{Document: testDocument(10), Pages: tt.pages})
			if !errors.Is(err, types.ErrInvalidPageRange) {
				t.Fatalf("Run() error = %v, want ErrInvalidPageRange", err)
			}
			var se *StageError
			if !errors.As(err, &se) || se.Stage != StateInit {
				t.Errorf("Run() error = %v, want init StageError", err)
			}
			if model.total() != 0 {
				t.Errorf("provider calls = %d, want 0", model.total())
			}
		})
	}
}

func TestRunDeck(t *testing.T) {
	model := newFakeModel()
	model.reply("deck_extraction", `{"name":"Unit 1","description":"Basics","cards":[
		{"word":"zebra","text_content":{"explanations":[]},"tags":[],"word_root":null,"notes":""},
		{"word":"apple","text_content":{"explanations":[]},"tags":[],"word_root":null,"notes":""}]}`)
	o := newTestOrchestrator(t, model)

	res, err := o.Run(context.Background(), Request{
		Document: testDocument(1),
		Pages:    types.SinglePage(1),
		Kind:     types.KindDeck,
		Language: "Spanish",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if model.total() != 1 || len(model.calls("deck_extraction")) != 1 {
		t.Fatalf("provider calls = %d, want exactly one deck extraction", model.total())
	}

	deck, ok := res.Output.Deck()
	if !ok {
		t.Fatalf("Output = %T, want deck", res.Output.Data)
	}
	if deck.Type != "deck" {
		t.Errorf("Type = %q", deck.Type)
	}
	if len(deck.Cards) != 2 || deck.Cards[0].Word != "zebra" || deck.Cards[1].Word != "apple" {
		t.Errorf("Cards = %+v, want extraction order preserved", deck.Cards)
	}
	if deck.Attributes.Name != "Unit 1" || deck.Attributes.ImportKey != res.RunID {
		t.Errorf("Attributes = %+v", deck.Attributes)
	}
	if deck.Attributes.Language == nil || *deck.Attributes.Language != "Spanish" {
		t.Error("Language not carried into deck attributes")
	}
	if deck.Attributes.CreatedAt == nil || *deck.Attributes.CreatedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("CreatedAt = %v", deck.Attributes.CreatedAt)
	}
}

func TestRunDeckNameOverride(t *testing.T) {
	model := newFakeModel()
	model.reply("deck_extraction", `{"name":"Model name","description":"d","cards":[]}`)
	o := newTestOrchestrator(t, model)

	res, err := o.Run(context.Background(), Request{
		Document: testDocument(3),
		Pages:    pageRange(t, 1, 3),
		Kind:     types.KindDeck,
		DeckName: "Chapter 2",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	deck, _ := res.Output.Deck()
	if deck.Attributes.Name != "Chapter 2" || deck.Attributes.SourcePages != "1-3" {
		t.Errorf("Attributes = %+v", deck.Attributes)
	}
}

func TestRunHintsIndexAligned(t *testing.T) {
	model := newFakeModel()
	model.on("hint_classification", func(req *providers.Request) (string, error) {
		name := req.Images[0].Name
		// Reverse the completion order.
		switch name {
		case "hint-0.png":
			time.Sleep(30 * time.Millisecond)
			return `{"type":"single_select","description":"lettered options"}`, nil
		case "hint-1.png":
			time.Sleep(10 * time.Millisecond)
			return `{"type":"fill_in","description":"blanks"}`, nil
		default:
			return `{"type":"emi_single_select","description":"shared options"}`, nil
		}
	})
	model.reply("page_mapping", `{"pages":[{"page":1,"included":[{"type":"fill_in","description":"Q1","cross_id":null}]}]}`)
	model.reply("fill_in_question", `{"text":"___ is red","latex":null,"audio_urls":[],"image_url":null,"explanation":null,"answers":[["Blood"]]}`)
	o := newTestOrchestrator(t, model)

	var images []types.Image
	for i := 0; i < 3; i++ {
		images = append(images, types.Image{Name: fmt.Sprintf("hint-%d.png", i), Data: []byte{byte(i)}, MIMEType: "image/png"})
	}

	res, err := o.Run(context.Background(), Request{Document: testDocument(1), Pages: types.SinglePage(1), Hints: images})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []types.QuestionType{types.SingleSelectType, types.FillInType, types.EMISingleSelectType}
	for i, tag := range res.Hints {
		if tag.ImageIndex != i || tag.Type != want[i] {
			t.Errorf("hint %d = %+v, want index %d type %s", i, tag, i, want[i])
		}
	}

	pm := model.calls("page_mapping")
	if len(pm) != 1 || !promptHas(pm[0], "Hint 2: fill_in. blanks") {
		t.Errorf("page mapping prompt should summarize hints")
	}
}

func TestRunHintFailureNamesImage(t *testing.T) {
	model := newFakeModel()
	model.on("hint_classification", func(req *providers.Request) (string, error) {
		if req.Images[0].Name == "bad.png" {
			return "", &providers.StatusError{Provider: "mock", StatusCode: 400, Body: "unsupported image"}
		}
		return `{"type":"fill_in","description":"blanks"}`, nil
	})
	o := newTestOrchestrator(t, model)

	_, err := o.Run(context.Background(), Request{
		Document: testDocument(1),
		Pages:    types.SinglePage(1),
		Hints: []types.Image{
			{Name: "ok.png", Data: []byte{1}, MIMEType: "image/png"},
			{Name: "bad.png", Data: []byte{2}, MIMEType: "image/png"},
		},
	})
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StateHintTagging || se.Unit != "image 1" {
		t.Fatalf("Run() error = %v, want hint_tagging failure for image 1", err)
	}
	if len(model.calls("page_mapping")) != 0 {
		t.Error("page mapping ran after hint failure")
	}
}

func TestRunGroupFailureIsFailFast(t *testing.T) {
	model := newFakeModel()
	model.reply("page_mapping", `{"pages":[
		{"page":1,"included":[{"type":"short_answer","description":"ok","cross_id":"q1"}]},
		{"page":2,"included":[{"type":"short_answer","description":"broken","cross_id":"q2"}]}]}`)
	model.on("short_answer_question", func(req *providers.Request) (string, error) {
		if promptHas(req, "broken") {
			return "", &providers.StatusError{Provider: "mock", StatusCode: 400, Body: "bad request"}
		}
		return `{"text":"fine","latex":null,"audio_urls":[],"image_url":null,"explanation":null,"answers":[]}`, nil
	})
	o := newTestOrchestrator(t, model)

	res, err := o.Run(context.Background(), Request{Document: testDocument(2), Pages: pageRange(t, 1, 2)})
	if res != nil {
		t.Error("Run() returned a partial result")
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StateGroupDispatch {
		t.Fatalf("Run() error = %v, want group_dispatch StageError", err)
	}
	if !strings.Contains(err.Error(), "q2") || !strings.Contains(err.Error(), "position 2") {
		t.Errorf("error %q should name cross id and position", err)
	}
	var pe *providers.StatusError
	if !errors.As(err, &pe) {
		t.Error("error should wrap the provider cause")
	}
}

func TestRunHeterogeneousGroup(t *testing.T) {
	model := newFakeModel()
	model.reply("page_mapping", `{"pages":[
		{"page":1,"included":[{"type":"single_select","description":"a","cross_id":"q1"}]},
		{"page":2,"included":[{"type":"multi_select","description":"b","cross_id":"q1"}]}]}`)
	o := newTestOrchestrator(t, model)

	_, err := o.Run(context.Background(), Request{Document: testDocument(2), Pages: pageRange(t, 1, 2)})
	var ae *AssemblyError
	if !errors.As(err, &ae) || ae.CrossID != "q1" {
		t.Fatalf("Run() error = %v, want AssemblyError for q1", err)
	}
	if n := len(model.calls("single_select_question")) + len(model.calls("multi_select_question")); n != 0 {
		t.Errorf("extraction calls = %d, want 0", n)
	}
}

func TestRunNoQuestions(t *testing.T) {
	model := newFakeModel()
	model.reply("page_mapping", `{"pages":[{"page":1,"included":[]}]}`)
	o := newTestOrchestrator(t, model)

	_, err := o.Run(context.Background(), Request{Document: testDocument(1), Pages: types.SinglePage(1)})
	if !errors.Is(err, ErrNoQuestions) {
		t.Errorf("Run() error = %v, want ErrNoQuestions", err)
	}
}

func TestRunLiftsEMISharedContext(t *testing.T) {
	model := newFakeModel()
	model.reply("page_mapping", `{"pages":[{"page":1,"included":[
		{"type":"emi_single_select","description":"stem 1","cross_id":null},
		{"type":"emi_single_select","description":"stem 2","cross_id":null}]}]}`)
	model.on("emi_single_select_question", func(req *providers.Request) (string, error) {
		answer := "A"
		if promptHas(req, "stem 2") {
			answer = "B"
		}
		return fmt.Sprintf(`{"text":"stem","latex":null,"audio_urls":[],"image_url":null,"explanation":null,
			"options":%s,"answers":[[%q]],
			"shared":{"text":"Match each patient","options":%s,"explanation":null}}`, optionsJSON, answer, optionsJSON), nil
	})
	o := newTestOrchestrator(t, model)

	res, err := o.Run(context.Background(), Request{Document: testDocument(1), Pages: types.SinglePage(1)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	group, _ := res.Output.QuestionGroup()
	if group.Attributes.Text != "Match each patient" || len(group.Attributes.Options) != 2 {
		t.Errorf("group attributes = %+v, want lifted shared context", group.Attributes)
	}
	if len(group.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(group.Questions))
	}
	for _, q := range group.Questions {
		emi := q.(*types.EMISingleSelect)
		if len(emi.Attributes.Options) != 0 {
			t.Errorf("question %d still carries %d options after lifting", emi.Attributes.Position, len(emi.Attributes.Options))
		}
		if err := emi.Validate(); err != nil {
			t.Errorf("question %d: Validate() error = %v", emi.Attributes.Position, err)
		}
	}
}

func TestRunConflictingEMIOptions(t *testing.T) {
	model := newFakeModel()
	model.reply("page_mapping", `{"pages":[{"page":1,"included":[
		{"type":"emi_single_select","description":"stem 1","cross_id":null},
		{"type":"emi_single_select","description":"stem 2","cross_id":null}]}]}`)
	otherOptions := `[{"symbol":"A","text":"3","latex":null,"audio_url":null,"image_url":null,"explanation":null},
		{"symbol":"C","text":"5","latex":null,"audio_url":null,"image_url":null,"explanation":null}]`
	model.on("emi_single_select_question", func(req *providers.Request) (string, error) {
		opts := optionsJSON
		if promptHas(req, "stem 2") {
			opts = otherOptions
		}
		return fmt.Sprintf(`{"text":"stem","latex":null,"audio_urls":[],"image_url":null,"explanation":null,
			"options":%s,"answers":[["A"]],
			"shared":{"text":"Match each patient","options":%s,"explanation":null}}`, opts, opts), nil
	})
	o := newTestOrchestrator(t, model)

	_, err := o.Run(context.Background(), Request{Document: testDocument(1), Pages: types.SinglePage(1)})
	var ae *AssemblyError
	if !errors.As(err, &ae) || ae.Position != 2 {
		t.Fatalf("Run() error = %v, want AssemblyError at position 2", err)
	}
	if !errors.Is(err, ErrSharedContextConflict) {
		t.Errorf("error should wrap ErrSharedContextConflict, got %v", err)
	}
}

func TestRunInvalidAnswerFailsExtraction(t *testing.T) {
	model := newFakeModel()
	model.reply("page_mapping", `{"pages":[{"page":1,"included":[{"type":"single_select","description":"Q1","cross_id":"q9"}]}]}`)
	model.reply("single_select_question", fmt.Sprintf(
		`{"text":"x","latex":null,"audio_urls":[],"image_url":null,"explanation":null,"options":%s,"answers":[["Z"]]}`, optionsJSON))
	o := newTestOrchestrator(t, model)

	_, err := o.Run(context.Background(), Request{Document: testDocument(1), Pages: types.SinglePage(1)})
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StateGroupDispatch {
		t.Fatalf("Run() error = %v, want group_dispatch StageError", err)
	}
	if !strings.Contains(err.Error(), "q9") || !strings.Contains(err.Error(), "position 1") {
		t.Errorf("error %q should name cross id and position", err)
	}
	var verr *generation.ValidationError
	if !errors.As(err, &verr) {
		t.Error("error should wrap *generation.ValidationError")
	}
	if !errors.Is(err, types.ErrInvalidQuestion) {
		t.Error("error should wrap ErrInvalidQuestion")
	}
}

func TestRunInvalidAnswerIsNotCached(t *testing.T) {
	model := newFakeModel()
	model.reply("page_mapping", `{"pages":[{"page":1,"included":[{"type":"short_answer","description":"Why?","cross_id":null}]}]}`)
	model.reply("short_answer_question",
		`{"text":"Why?","latex":null,"audio_urls":[],"image_url":null,"explanation":null,"answers":[["because"]]}`)
	o := newTestOrchestrator(t, model)
	req := Request{Document: testDocument(1), Pages: types.SinglePage(1)}

	_, err := o.Run(context.Background(), req)
	var verr *generation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("first Run() error = %v, want *generation.ValidationError", err)
	}

	model.reply("short_answer_question",
		`{"text":"Why?","latex":null,"audio_urls":[],"image_url":null,"explanation":null,"answers":[]}`)
	res, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if n := len(model.calls("short_answer_question")); n != 2 {
		t.Errorf("extraction calls = %d, want 2", n)
	}
	group, _ := res.Output.QuestionGroup()
	if len(group.Questions) != 1 || group.Questions[0].Form() != types.ShortAnswerType {
		t.Errorf("questions = %+v", group.Questions)
	}
}

func TestRunMetricsAndSharedCache(t *testing.T) {
	model := newFakeModel()
	model.reply("page_mapping", `{"pages":[{"page":1,"included":[{"type":"single_select","description":"Q1","cross_id":null}]}]}`)
	model.reply("single_select_question", singleSelectJSON("cached"))
	o := newTestOrchestrator(t, model)
	req := Request{Document: testDocument(1), Pages: types.SinglePage(1)}

	first, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	s := first.Summary()
	if s.Calls != 2 || s.CacheHits != 0 || s.TotalCostUSD <= 0 {
		t.Errorf("first summary = %+v", s)
	}

	second, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	s = second.Summary()
	if s.Calls != 2 || s.CacheHits != 2 || s.Usage.TotalTokens != 0 {
		t.Errorf("second summary = %+v, want all cache hits", s)
	}
	if model.total() != 2 {
		t.Errorf("provider calls = %d, want 2", model.total())
	}
	if first.RunID == second.RunID {
		t.Error("runs should get distinct ids")
	}
}

func TestRunCancelled(t *testing.T) {
	model := newFakeModel()
	o := newTestOrchestrator(t, model)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, Request{Document: testDocument(1), Pages: types.SinglePage(1)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestSetLimits(t *testing.T) {
	o := newTestOrchestrator(t, newFakeModel())

	o.SetLimits(8, 2)
	if w, h := o.Limits(); w != 8 || h != 2 {
		t.Errorf("Limits() = %d, %d, want 8, 2", w, h)
	}
	o.SetLimits(0, -1)
	if w, h := o.Limits(); w != DefaultMaxWorkers || h != DefaultHintConcurrency {
		t.Errorf("Limits() = %d, %d, want defaults", w, h)
	}
}
