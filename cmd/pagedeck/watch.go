package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pagedeck/pagedeck/internal/config"
	"github.com/pagedeck/pagedeck/internal/ingest"
	"github.com/pagedeck/pagedeck/internal/pipeline"
)

var (
	watchInbox  string
	watchOutbox string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run job manifests dropped into an inbox directory",
	Long: `Watch runs every *.job.yaml manifest that appears in the inbox, one at a time,
writing <name>.out.json (or the manifest's format) to the outbox and moving the
manifest to ~/.pagedeck/done. All jobs share one response cache.

The config file is watched too: edits to limits take effect for the next job,
and provider changes rebuild the pipeline.

Manifest:
  document: exam.pdf          # relative to the manifest
  pages: 3-5
  hints: [hints/]             # optional
  kind: questions             # or deck
  instruction: ""             # optional
  deck_name: ""               # optional
  language: Spanish           # optional
  format: json                # json, yaml or xlsx`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.home.EnsureExists(); err != nil {
			return err
		}

		runner, err := newLiveRunner(a, a.config.Get())
		if err != nil {
			return err
		}
		defer runner.close()
		a.config.OnChange(func(cfg *config.Config) {
			a.registry.Reload(cfg.ToProviderRegistryConfig())
			runner.reload(cfg)
		})
		a.config.WatchConfig()

		inbox, outbox := watchInbox, watchOutbox
		if inbox == "" {
			inbox = a.home.InboxPath()
		}
		if outbox == "" {
			outbox = a.home.OutboxPath()
		}

		handler, err := ingest.NewHandler(ingest.HandlerConfig{
			Runner:    runner,
			Loader:    ingest.NewFileLoader(logger),
			OutboxDir: outbox,
			DoneDir:   a.home.DonePath(),
			Logger:    logger,
		})
		if err != nil {
			return err
		}

		watcher, err := ingest.NewWatcher(ingest.WatcherConfig{
			InboxDir: inbox,
			Handler:  handler,
			Logger:   logger,
			OnJob: func(job *ingest.Job, err error) {
				if job == nil || err != nil {
					return
				}
				stats := a.cache.Stats()
				logger.Info("cache", "size", stats.Size, "max", stats.Max)
			},
		})
		if err != nil {
			return err
		}

		return watcher.Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchInbox, "inbox", "", "directory to watch (default: ~/.pagedeck/inbox)")
	watchCmd.Flags().StringVar(&watchOutbox, "outbox", "", "directory for outputs (default: ~/.pagedeck/outbox)")
}

// pipelineRunner is the part of *pipeline.Orchestrator the watcher drives.
type pipelineRunner interface {
	ingest.Runner
	SetLimits(maxWorkers, hintConcurrency int)
	Limits() (maxWorkers, hintConcurrency int)
}

// buildFunc builds a pipeline for a config and returns the function that
// releases what it holds.
type buildFunc func(cfg *config.Config) (pipelineRunner, func(), error)

// livePipeline is one built pipeline and the jobs currently running on it.
type livePipeline struct {
	runner  pipelineRunner
	release func()
	active  int
	retired bool
}

// liveRunner serves runs from the most recently built pipeline. A replaced
// pipeline is released once its last running job finishes.
type liveRunner struct {
	build  buildFunc
	logger *slog.Logger

	mu      sync.Mutex
	current *livePipeline
}

func newLiveRunner(a *app, cfg *config.Config) (*liveRunner, error) {
	return startLiveRunner(func(cfg *config.Config) (pipelineRunner, func(), error) {
		orch, lease, err := a.orchestrator(cfg)
		if err != nil {
			return nil, nil, err
		}
		return orch, lease.Release, nil
	}, cfg, a.logger)
}

func startLiveRunner(build buildFunc, cfg *config.Config, logger *slog.Logger) (*liveRunner, error) {
	runner, release, err := build(cfg)
	if err != nil {
		return nil, err
	}
	return &liveRunner{
		build:   build,
		logger:  logger,
		current: &livePipeline{runner: runner, release: release},
	}, nil
}

func (r *liveRunner) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	r.mu.Lock()
	p := r.current
	p.active++
	r.mu.Unlock()

	defer r.finish(p)
	return p.runner.Run(ctx, req)
}

func (r *liveRunner) finish(p *livePipeline) {
	r.mu.Lock()
	p.active--
	done := p.retired && p.active == 0
	r.mu.Unlock()
	if done {
		p.release()
	}
}

// reload applies new limits to the running pipeline, then swaps in one
// rebuilt from cfg. If the rebuild fails the current pipeline keeps serving.
func (r *liveRunner) reload(cfg *config.Config) {
	r.mu.Lock()
	r.current.runner.SetLimits(cfg.Defaults.MaxWorkers, cfg.Defaults.HintConcurrency)
	r.mu.Unlock()

	runner, release, err := r.build(cfg)
	if err != nil {
		r.logger.Warn("config reload: keeping current pipeline", "error", err)
		return
	}

	r.mu.Lock()
	old := r.current
	r.current = &livePipeline{runner: runner, release: release}
	old.retired = true
	idle := old.active == 0
	r.mu.Unlock()
	if idle {
		old.release()
	}

	workers, hints := runner.Limits()
	r.logger.Info("config reloaded", "provider", cfg.Defaults.LLMProvider, "max_workers", workers, "hint_concurrency", hints)
}

// close releases the current pipeline. Call it once no job is running.
func (r *liveRunner) close() {
	r.mu.Lock()
	p := r.current
	p.retired = true
	idle := p.active == 0
	r.mu.Unlock()
	if idle {
		p.release()
	}
}
