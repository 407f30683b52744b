package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pagedeck/pagedeck/internal/cache"
	"github.com/pagedeck/pagedeck/internal/generation"
	"github.com/pagedeck/pagedeck/internal/providers"
	"github.com/pagedeck/pagedeck/internal/types"
)

// fakeModel answers each request by schema name and records what it saw.
type fakeModel struct {
	mu      sync.Mutex
	replies map[string]func(req *providers.Request) (string, error)
	seen    map[string][]*providers.Request
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		replies: make(map[string]func(req *providers.Request) (string, error)),
		seen:    make(map[string][]*providers.Request),
	}
}

func (f *fakeModel) on(schema string, fn func(req *providers.Request) (string, error)) {
	f.replies[schema] = fn
}

func (f *fakeModel) reply(schema, content string) {
	f.on(schema, func(*providers.Request) (string, error) { return content, nil })
}

func (f *fakeModel) respond(req *providers.Request) (string, error) {
	name := "response"
	if req.ResponseFormat != nil {
		name = providers.SchemaName(req.ResponseFormat.JSONSchema)
	}
	f.mu.Lock()
	f.seen[name] = append(f.seen[name], req)
	fn, ok := f.replies[name]
	f.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no reply scripted for %s", name)
	}
	return fn(req)
}

func (f *fakeModel) calls(schema string) []*providers.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*providers.Request(nil), f.seen[schema]...)
}

func (f *fakeModel) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, reqs := range f.seen {
		n += len(reqs)
	}
	return n
}

func newTestOrchestrator(t *testing.T, model *fakeModel) *Orchestrator {
	t.Helper()
	mock := providers.NewMockClient()
	mock.Respond = model.respond

	gen, err := generation.New(generation.Config{
		Provider:     mock,
		Cache:        cache.New(cache.Config{MaxEntries: 100, TTL: time.Hour}),
		MaxRetries:   -1,
		InitialDelay: time.Millisecond,
		Timeout:      5 * time.Second,
		Logger:       discardLogger(),
	})
	if err != nil {
		t.Fatalf("generation.New() error = %v", err)
	}
	o, err := New(Config{
		Generator: gen,
		Logger:    discardLogger(),
		Now:       func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func testDocument(pages int) *types.Document {
	return &types.Document{
		Name:      "exam.pdf",
		Data:      []byte("%PDF-1.7 test"),
		MIMEType:  "application/pdf",
		PageCount: pages,
	}
}

func pageRange(t *testing.T, start, end int) types.PageRange {
	t.Helper()
	r, err := types.NewPageRange(start, end)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

const optionsJSON = `[{"symbol":"A","text":"3","latex":null,"audio_url":null,"image_url":null,"explanation":null},
	{"symbol":"B","text":"4","latex":null,"audio_url":null,"image_url":null,"explanation":null}]`

func singleSelectJSON(text string) string {
	return fmt.Sprintf(`{"text":%q,"latex":null,"audio_urls":[],"image_url":null,"explanation":null,"options":%s,"answers":[["B"]]}`,
		text, optionsJSON)
}

// promptHas reports whether the request's user prompt mentions s.
func promptHas(req *providers.Request, s string) bool {
	return strings.Contains(req.Prompt, s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
