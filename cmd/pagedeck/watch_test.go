package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pagedeck/pagedeck/internal/config"
	"github.com/pagedeck/pagedeck/internal/pipeline"
)

// blockingRunner holds every Run until unblock is closed.
type blockingRunner struct {
	started chan struct{}
	unblock chan struct{}
	runs    atomic.Int32

	mu              sync.Mutex
	maxWorkers      int
	hintConcurrency int
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 8), unblock: make(chan struct{})}
}

func (b *blockingRunner) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	b.runs.Add(1)
	b.started <- struct{}{}
	select {
	case <-b.unblock:
		return &pipeline.Result{RunID: "run"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *blockingRunner) SetLimits(maxWorkers, hintConcurrency int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxWorkers, b.hintConcurrency = maxWorkers, hintConcurrency
}

func (b *blockingRunner) Limits() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxWorkers, b.hintConcurrency
}

// builds hands out runners in order and counts releases per runner.
type builds struct {
	runners  []*blockingRunner
	next     int
	released []atomic.Int32
	fail     bool
}

func (b *builds) build(cfg *config.Config) (pipelineRunner, func(), error) {
	if b.fail {
		return nil, nil, errors.New("provider unavailable")
	}
	i := b.next
	b.next++
	return b.runners[i], func() { b.released[i].Add(1) }, nil
}

func testConfig(workers int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Defaults.MaxWorkers = workers
	return cfg
}

func TestLiveRunner_ReloadWaitsForRunningJob(t *testing.T) {
	first, second := newBlockingRunner(), newBlockingRunner()
	b := &builds{runners: []*blockingRunner{first, second}, released: make([]atomic.Int32, 2)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r, err := startLiveRunner(b.build, testConfig(4), logger)
	if err != nil {
		t.Fatalf("startLiveRunner() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), pipeline.Request{})
		done <- err
	}()
	select {
	case <-first.started:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not start")
	}

	r.reload(testConfig(6))
	if w, _ := first.Limits(); w != 6 {
		t.Errorf("running pipeline max_workers = %d, want 6", w)
	}
	if b.released[0].Load() != 0 {
		t.Fatal("pipeline released while a job was still running on it")
	}

	close(second.unblock)
	if _, err := r.Run(context.Background(), pipeline.Request{}); err != nil {
		t.Fatalf("Run() after reload error = %v", err)
	}
	if second.runs.Load() != 1 {
		t.Errorf("new pipeline runs = %d, want 1", second.runs.Load())
	}

	close(first.unblock)
	if err := <-done; err != nil {
		t.Fatalf("running job error = %v", err)
	}
	if b.released[0].Load() != 1 {
		t.Errorf("old pipeline releases = %d, want 1", b.released[0].Load())
	}

	r.close()
	if b.released[1].Load() != 1 {
		t.Errorf("current pipeline releases after close = %d, want 1", b.released[1].Load())
	}
}

func TestLiveRunner_IdleReloadReleasesImmediately(t *testing.T) {
	first, second := newBlockingRunner(), newBlockingRunner()
	b := &builds{runners: []*blockingRunner{first, second}, released: make([]atomic.Int32, 2)}

	r, err := startLiveRunner(b.build, testConfig(4), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	r.reload(testConfig(4))
	if b.released[0].Load() != 1 || b.released[1].Load() != 0 {
		t.Errorf("releases = %d, %d, want 1, 0", b.released[0].Load(), b.released[1].Load())
	}
}

func TestLiveRunner_FailedRebuildKeepsPipeline(t *testing.T) {
	first := newBlockingRunner()
	b := &builds{runners: []*blockingRunner{first}, released: make([]atomic.Int32, 1)}

	r, err := startLiveRunner(b.build, testConfig(4), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	b.fail = true
	r.reload(testConfig(2))

	if b.released[0].Load() != 0 {
		t.Error("current pipeline released after a failed rebuild")
	}
	if w, _ := first.Limits(); w != 2 {
		t.Errorf("max_workers = %d, want 2", w)
	}
	close(first.unblock)
	if _, err := r.Run(context.Background(), pipeline.Request{}); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
