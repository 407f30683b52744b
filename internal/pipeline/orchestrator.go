// Package pipeline turns a document page range into an ordered question group
// or vocabulary deck. A run moves through hint tagging, page analysis, group
// dispatch and assembly; any failure ends the run with no partial output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pagedeck/pagedeck/internal/cache"
	"github.com/pagedeck/pagedeck/internal/generation"
	"github.com/pagedeck/pagedeck/internal/metrics"
	"github.com/pagedeck/pagedeck/internal/prompts"
	"github.com/pagedeck/pagedeck/internal/types"
)

// DefaultMaxWorkers bounds parallel group extraction.
const DefaultMaxWorkers = 4

// Config configures an Orchestrator.
type Config struct {
	// Generator performs every model call. Required.
	Generator *generation.Client

	// Prompts defaults to NewPromptResolver("", Logger).
	Prompts *prompts.Resolver

	// Extractors overrides the extractor per type. Missing types use the defaults.
	Extractors map[types.QuestionType]Extractor

	MaxWorkers      int
	HintConcurrency int

	// Language is used for translations and composed text unless a request sets one.
	Language string

	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Request describes one run.
type Request struct {
	Document    *types.Document
	Hints       []types.Image
	Pages       types.PageRange
	Kind        types.DocumentKind
	Instruction string
	// DeckName overrides the name the model proposes for a deck.
	DeckName string
	Language string
}

// Result is the output of a successful run.
type Result struct {
	RunID       string
	Output      types.Output
	Hints       []types.HintTag
	Pages       []types.PageMap
	Groups      []Group
	Transitions []Transition
	Metrics     *metrics.Accumulator
	Duration    time.Duration
}

// Summary aggregates the run's call metrics.
func (r *Result) Summary() metrics.Summary {
	return r.Metrics.Summary()
}

// Orchestrator runs the extraction pipeline. Safe for concurrent use; runs
// share the generator and its cache.
type Orchestrator struct {
	gen        *generation.Client
	prompts    *prompts.Resolver
	extractors map[types.QuestionType]Extractor
	language   string
	logger     *slog.Logger
	now        func() time.Time

	mu              sync.RWMutex
	maxWorkers      int
	hintConcurrency int
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("pipeline: %w", generation.ErrNoProvider)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompts == nil {
		cfg.Prompts = NewPromptResolver("", cfg.Logger)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	extractors := NewExtractors(cfg.Generator, cfg.Prompts)
	for qt, e := range cfg.Extractors {
		extractors[qt] = e
	}

	o := &Orchestrator{
		gen:        cfg.Generator,
		prompts:    cfg.Prompts,
		extractors: extractors,
		language:   cfg.Language,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	o.SetLimits(cfg.MaxWorkers, cfg.HintConcurrency)
	return o, nil
}

// SetLimits changes the concurrency bounds for subsequent runs.
// Values <= 0 reset to the defaults.
func (o *Orchestrator) SetLimits(maxWorkers, hintConcurrency int) {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if hintConcurrency <= 0 {
		hintConcurrency = DefaultHintConcurrency
	}
	o.mu.Lock()
	o.maxWorkers = maxWorkers
	o.hintConcurrency = hintConcurrency
	o.mu.Unlock()
}

// Limits returns the current concurrency bounds.
func (o *Orchestrator) Limits() (maxWorkers, hintConcurrency int) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.maxWorkers, o.hintConcurrency
}

// Cache returns the shared response cache, or nil.
func (o *Orchestrator) Cache() *cache.ResponseCache {
	return o.gen.Cache()
}

// Run executes one pipeline run. The page range is checked before any
// provider call is made.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	kind, err := types.ParseDocumentKind(string(req.Kind))
	if err != nil {
		return nil, &StageError{Stage: StateInit, Err: err}
	}
	if req.Document == nil {
		return nil, &StageError{Stage: StateInit, Err: ErrNoDocument}
	}
	if err := req.Document.CheckRange(req.Pages); err != nil {
		return nil, &StageError{Stage: StateInit, Unit: "pages " + req.Pages.String(), Err: err}
	}
	if req.Language == "" {
		req.Language = o.language
	}

	rs := newRunState(uuid.NewString(), req, kind)
	logger := o.logger.With("run_id", rs.id, "kind", kind, "page_range", req.Pages.String())

	plan, err := o.plan(rs)
	if err != nil {
		return nil, &StageError{Stage: StateInit, Err: err}
	}
	stages, err := plan.GetOrdered()
	if err != nil {
		return nil, &StageError{Stage: StateInit, Err: err}
	}

	logger.Info("run started", "stages", plan.Names(), "hints", len(req.Hints))
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, o.fail(rs, logger, &StageError{Stage: s.Name(), Err: err})
		}
		rs.transition(s.Name())
		stageStart := time.Now()
		if err := s.Execute(ctx, rs); err != nil {
			return nil, o.fail(rs, logger, qualify(s.Name(), err))
		}
		logger.Debug("stage complete", "stage", s.Name(), "duration", time.Since(stageStart))
	}
	rs.transition(StateDone)

	summary := rs.metrics.Summary()
	logger.Info("run complete",
		"groups", len(rs.groups),
		"calls", summary.Calls,
		"cache_hits", summary.CacheHits,
		"retries", summary.RetryAttempts,
		"cost_usd", summary.TotalCostUSD,
		"duration", time.Since(start))

	rs.mu.Lock()
	transitions := append([]Transition(nil), rs.transitions...)
	rs.mu.Unlock()

	return &Result{
		RunID:       rs.id,
		Output:      rs.output,
		Hints:       rs.hints,
		Pages:       rs.pages,
		Groups:      rs.groups,
		Transitions: transitions,
		Metrics:     rs.metrics,
		Duration:    time.Since(start),
	}, nil
}

func (o *Orchestrator) fail(rs *runState, logger *slog.Logger, err error) error {
	logger.Error("run failed", "stage", rs.current(), "error", err)
	rs.transition(StateFailed)
	return err
}

// qualify wraps err in a StageError unless it already carries stage or group context.
func qualify(stage State, err error) error {
	var (
		se *StageError
		ae *AssemblyError
	)
	if errors.As(err, &se) || errors.As(err, &ae) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// plan registers the stages for the run's document kind. Deck runs extract
// the whole range as one group and skip hint tagging and page analysis.
func (o *Orchestrator) plan(rs *runState) (*Registry, error) {
	r := NewRegistry()

	if rs.kind == types.KindDeck {
		rs.groups = []Group{{
			Type:     types.DeckType,
			CrossID:  rs.req.Pages.String(),
			Pages:    rs.req.Pages,
			Position: 1,
		}}
		if len(rs.req.Hints) > 0 {
			o.logger.Warn("hint images are ignored for deck runs", "run_id", rs.id, "hints", len(rs.req.Hints))
		}
		return r, errors.Join(
			r.Register(stageFunc{name: StateGroupDispatch, fn: o.dispatch}),
			r.Register(stageFunc{name: StateAssembly, deps: []State{StateGroupDispatch}, fn: o.assemble}),
		)
	}

	return r, errors.Join(
		r.Register(stageFunc{name: StateHintTagging, fn: o.tagHints}),
		r.Register(stageFunc{name: StatePageAnalysis, deps: []State{StateHintTagging}, fn: o.analyzePages}),
		r.Register(stageFunc{name: StateGroupDispatch, deps: []State{StatePageAnalysis}, fn: o.dispatch}),
		r.Register(stageFunc{name: StateAssembly, deps: []State{StateGroupDispatch}, fn: o.assemble}),
	)
}

func (o *Orchestrator) tagHints(ctx context.Context, rs *runState) error {
	_, hintConcurrency := o.Limits()
	classifier := NewHintClassifier(o.gen, o.prompts, hintConcurrency, o.logger)
	tags, err := classifier.Classify(ctx, rs.req.Hints, rs.scope())
	if err != nil {
		return err
	}
	rs.hints = tags
	return nil
}

func (o *Orchestrator) analyzePages(ctx context.Context, rs *runState) error {
	mapper := NewPageMapper(o.gen, o.prompts, o.logger)
	pages, err := mapper.MapPages(ctx, rs.req.Document, rs.req.Pages, rs.hints, rs.scope())
	if err != nil {
		return err
	}
	rs.pages = pages
	return nil
}

// dispatch extracts every group in parallel. The first failure cancels the
// remaining extractions and none of their results are kept.
func (o *Orchestrator) dispatch(ctx context.Context, rs *runState) error {
	if rs.groups == nil {
		groups, err := GroupPages(rs.pages, o.logger)
		if err != nil {
			return err
		}
		rs.groups = groups
	}
	if len(rs.groups) == 0 {
		return &StageError{Stage: StateGroupDispatch, Unit: "pages " + rs.req.Pages.String(), Err: ErrNoQuestions}
	}
	for _, grp := range rs.groups {
		if _, ok := o.extractors[grp.Type]; !ok {
			return &StageError{Stage: StateGroupDispatch, Unit: grp.unit(), Err: fmt.Errorf("%w: %s", ErrNoExtractor, grp.Type)}
		}
	}

	maxWorkers, _ := o.Limits()
	scope := rs.scope()
	results := make([]Extraction, len(rs.groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for i, grp := range rs.groups {
		extractor := o.extractors[grp.Type]
		g.Go(func() error {
			out, m, err := extractor.Extract(gctx, ExtractInput{
				Document:    rs.req.Document,
				Pages:       grp.Pages,
				Description: grp.Description(),
				CrossID:     grp.CrossID,
				Position:    grp.Position,
				Instruction: rs.req.Instruction,
				Language:    rs.req.Language,
				RunID:       rs.id,
			})
			scope.record(StateGroupDispatch, grp.Label(), o.gen, m, err)
			if err != nil {
				return &StageError{Stage: StateGroupDispatch, Unit: grp.unit(), Err: err}
			}
			out.Group = grp
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rs.extractions = results
	return nil
}

func (o *Orchestrator) assemble(_ context.Context, rs *runState) error {
	if rs.kind == types.KindDeck {
		deck, err := assembleDeck(rs.extractions, DeckMeta{
			Name:      rs.req.DeckName,
			ImportKey: rs.id,
			Language:  rs.req.Language,
			Pages:     rs.req.Pages,
			CreatedAt: o.now(),
		})
		if err != nil {
			return err
		}
		rs.output = types.Output{Data: deck}
		return nil
	}

	group, err := assembleQuestions(rs.extractions, o.logger)
	if err != nil {
		return err
	}
	rs.output = types.Output{Data: group}
	return nil
}
