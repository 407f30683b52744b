package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pagedeck/pagedeck/internal/generation"
	"github.com/pagedeck/pagedeck/internal/metrics"
	"github.com/pagedeck/pagedeck/internal/providers"
	"github.com/pagedeck/pagedeck/internal/types"
)

// State is a step of the orchestration state machine.
type State string

const (
	StateInit          State = "init"
	StateHintTagging   State = "hint_tagging"
	StatePageAnalysis  State = "page_analysis"
	StateGroupDispatch State = "group_dispatch"
	StateAssembly      State = "assembly"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition is one recorded state change.
type Transition struct {
	State State     `json:"state"`
	At    time.Time `json:"at"`
}

// runState is owned by one Run call. Stages execute sequentially, so only
// the dispatch results and the accumulator see concurrent writers.
type runState struct {
	id      string
	req     Request
	kind    types.DocumentKind
	metrics *metrics.Accumulator

	mu          sync.Mutex
	state       State
	transitions []Transition

	hints       []types.HintTag
	pages       []types.PageMap
	groups      []Group
	extractions []Extraction
	output      types.Output
}

func newRunState(id string, req Request, kind types.DocumentKind) *runState {
	rs := &runState{
		id:      id,
		req:     req,
		kind:    kind,
		metrics: metrics.NewAccumulator(),
	}
	rs.transition(StateInit)
	return rs
}

func (rs *runState) transition(s State) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.state = s
	rs.transitions = append(rs.transitions, Transition{State: s, At: time.Now()})
}

func (rs *runState) current() State {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.state
}

func (rs *runState) scope() Scope {
	return Scope{
		RunID:       rs.id,
		Instruction: rs.req.Instruction,
		Language:    rs.req.Language,
		Metrics:     rs.metrics,
	}
}

// Scope carries per-run context into the stage components.
type Scope struct {
	RunID       string
	Instruction string
	Language    string
	// Metrics receives one record per generation call when set.
	Metrics *metrics.Accumulator
}

func (s Scope) record(stage State, item string, gen *generation.Client, m metrics.CallMetrics, err error) {
	if s.Metrics == nil {
		return
	}
	rec := metrics.Record{
		Stage:       string(stage),
		ItemKey:     item,
		Provider:    gen.ProviderName(),
		Model:       gen.Model(),
		CallMetrics: m,
		Success:     err == nil,
	}
	if err != nil {
		rec.ErrorType = errorType(err)
	}
	s.Metrics.Record(rec)
}

// errorType buckets err for metrics.
func errorType(err error) string {
	var (
		verr *generation.ValidationError
		perr *generation.ProviderError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &perr):
		if providers.IsRateLimited(perr.Err) {
			return "rate_limited"
		}
		return "provider"
	default:
		return "error"
	}
}
