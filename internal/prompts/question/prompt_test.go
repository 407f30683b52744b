package question

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pagedeck/pagedeck/internal/prompts"
	"github.com/pagedeck/pagedeck/internal/providers"
	"github.com/pagedeck/pagedeck/internal/types"
)

func TestResponseFormatValidates(t *testing.T) {
	tests := []struct {
		name    string
		form    types.QuestionType
		content string
		wantErr bool
	}{
		{
			name: "single select",
			form: types.SingleSelectType,
			content: `{"text":"2+2?","latex":null,"audio_urls":[],"image_url":null,"explanation":null,
				"options":[{"symbol":"A","text":"3","latex":null,"audio_url":null,"image_url":null,"explanation":null},
				           {"symbol":"B","text":"4","latex":null,"audio_url":null,"image_url":null,"explanation":null}],
				"answers":[["B"]]}`,
		},
		{
			name:    "fill in",
			form:    types.FillInType,
			content: `{"text":"The capital of France is ___.","latex":null,"audio_urls":[],"image_url":null,"explanation":null,"answers":[["Paris"]]}`,
		},
		{
			name:    "short answer",
			form:    types.ShortAnswerType,
			content: `{"text":"Explain osmosis.","latex":null,"audio_urls":[],"image_url":null,"explanation":"Water moves.","answers":[]}`,
		},
		{
			name: "emi without shared context",
			form: types.EMISingleSelectType,
			content: `{"text":"Fever and rash","latex":null,"audio_urls":[],"image_url":null,"explanation":null,
				"options":[{"symbol":"A","text":"Measles","latex":null,"audio_url":null,"image_url":null,"explanation":null}],
				"answers":[["A"]],"shared":null}`,
		},
		{
			name:    "single select missing options",
			form:    types.SingleSelectType,
			content: `{"text":"missing options","latex":null,"audio_urls":[],"image_url":null,"explanation":null,"answers":[["A"]]}`,
			wantErr: true,
		},
		{
			name:    "short answer carrying answers",
			form:    types.ShortAnswerType,
			content: `{"text":"Explain osmosis.","latex":null,"audio_urls":[],"image_url":null,"explanation":null,"answers":[["because"]]}`,
			wantErr: true,
		},
		{
			name: "single select two symbols",
			form: types.SingleSelectType,
			content: `{"text":"2+2?","latex":null,"audio_urls":[],"image_url":null,"explanation":null,
				"options":[{"symbol":"A","text":"3","latex":null,"audio_url":null,"image_url":null,"explanation":null}],
				"answers":[["A","B"]]}`,
			wantErr: true,
		},
		{
			name: "emi two answer sets",
			form: types.EMISingleSelectType,
			content: `{"text":"Fever and rash","latex":null,"audio_urls":[],"image_url":null,"explanation":null,
				"options":[{"symbol":"A","text":"Measles","latex":null,"audio_url":null,"image_url":null,"explanation":null}],
				"answers":[["A"],["A"]],"shared":null}`,
			wantErr: true,
		},
		{
			name:    "multi select no answer",
			form:    types.MultiSelectType,
			content: `{"text":"pick","latex":null,"audio_urls":[],"image_url":null,"explanation":null,"options":[],"answers":[]}`,
			wantErr: true,
		},
		{
			name:    "fill in empty answer set",
			form:    types.FillInType,
			content: `{"text":"___","latex":null,"audio_urls":[],"image_url":null,"explanation":null,"answers":[[]]}`,
			wantErr: true,
		},
		{
			name:    "fill in with options",
			form:    types.FillInType,
			content: `{"text":"extra field","latex":null,"audio_urls":[],"image_url":null,"explanation":null,"answers":[],"options":[]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf, err := ResponseFormat(tt.form)
			if err != nil {
				t.Fatalf("ResponseFormat() error = %v", err)
			}
			err = providers.ValidateStructuredJSON(rf.JSONSchema, json.RawMessage(tt.content))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStructuredJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResponseFormatUnknownForm(t *testing.T) {
	if _, err := ResponseFormat(types.DeckType); err == nil {
		t.Error("ResponseFormat(deck) expected error")
	}
}

func TestResponseRecord(t *testing.T) {
	content := `{"text":"Pick two primes","latex":null,"audio_urls":[],"image_url":null,"explanation":null,
		"options":[{"symbol":"A","text":"2"},{"symbol":"B","text":"4"},{"symbol":"C","text":"5"}],
		"answers":[["A","C"]]}`
	var resp Response
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		t.Fatal(err)
	}

	q, err := resp.Record(types.MultiSelectType, 3)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	ms, ok := q.(*types.MultiSelect)
	if !ok {
		t.Fatalf("Record() = %T, want *types.MultiSelect", q)
	}
	if ms.Attributes.Position != 3 || ms.Attributes.AssessmentForm != types.MultiSelectType {
		t.Errorf("attributes = %+v", ms.Attributes.QuestionAttributes)
	}
	if len(ms.Attributes.Options) != 3 {
		t.Errorf("options = %d, want 3", len(ms.Attributes.Options))
	}
	if err := q.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestResponseRecordShortAnswerHasEmptyAnswers(t *testing.T) {
	q, err := Response{Text: "Why?"}.Record(types.ShortAnswerType, 1)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	data, err := json.Marshal(q)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"answers":[]`) {
		t.Errorf("Marshal() = %s, want empty answers list", data)
	}
}

func TestResponseRecordEMIKeepsShared(t *testing.T) {
	shared := &types.SharedContext{Text: "Match each case", Options: []types.Option{{Symbol: "A", Text: "Flu"}}}
	q, err := Response{Text: "Case 1", Answers: [][]string{{"A"}}, Shared: shared}.Record(types.EMISingleSelectType, 2)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	emi := q.(*types.EMISingleSelect)
	if emi.Shared != shared {
		t.Error("Record() dropped the shared context")
	}
	if err := emi.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRender(t *testing.T) {
	r := prompts.NewResolver("", nil)
	RegisterPrompts(r)

	pr, _ := types.NewPageRange(2, 3)
	got, err := Render(r, NewData(types.FillInType, pr, "Q7 sentence completion", "q7", 4, "Keep British spelling", "German"))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"fill_in", "one entry per blank", "German"} {
		if !strings.Contains(got.System, want) {
			t.Errorf("System missing %q", want)
		}
	}
	for _, want := range []string{"pages 2 to 3", "Q7 sentence completion", `"q7"`, "position 4", "Keep British spelling"} {
		if !strings.Contains(got.User, want) {
			t.Errorf("User missing %q:\n%s", want, got.User)
		}
	}
	if got.CID == "" {
		t.Error("Render() CID is empty")
	}
}

func TestRenderSelfContained(t *testing.T) {
	r := prompts.NewResolver("", nil)
	RegisterPrompts(r)

	got, err := Render(r, NewData(types.ShortAnswerType, types.SinglePage(5), "Q1", "", 1, "", ""))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(got.User, "continues across pages") {
		t.Error("self-contained question should not mention continuation")
	}
	if strings.Contains(got.User, "Author note") {
		t.Error("empty instruction should be omitted")
	}
}
