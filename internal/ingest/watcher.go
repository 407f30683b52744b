package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// DefaultSettle is how long a manifest must go without writes before it is run.
const DefaultSettle = 250 * time.Millisecond

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	InboxDir string
	Handler  *Handler
	Settle   time.Duration
	Logger   *slog.Logger
	// OnJob is called after each job finishes.
	OnJob func(job *Job, err error)
}

// Watcher runs manifests as they appear in an inbox directory. Jobs run one
// at a time in arrival order; manifests present at startup run first.
type Watcher struct {
	inbox   string
	handler *Handler
	settle  time.Duration
	logger  *slog.Logger
	onJob   func(*Job, error)

	mu      sync.Mutex
	pending map[string]time.Time
	queued  map[string]bool
}

// NewWatcher creates a Watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Handler == nil {
		return nil, errors.New("ingest: handler is required")
	}
	if cfg.InboxDir == "" {
		return nil, errors.New("ingest: inbox directory is required")
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watcher{
		inbox:   cfg.InboxDir,
		handler: cfg.Handler,
		settle:  cfg.Settle,
		logger:  cfg.Logger,
		onJob:   cfg.OnJob,
		pending: make(map[string]time.Time),
		queued:  make(map[string]bool),
	}, nil
}

// Run watches until ctx is cancelled. A job in flight at cancellation is
// interrupted and its manifest left in the inbox.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.inbox, 0o755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.inbox); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.inbox, err)
	}

	existing, err := w.scan()
	if err != nil {
		return err
	}

	queue := make(chan string, 64)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case path := <-queue:
				w.process(ctx, path)
			}
		}
	})

	g.Go(func() error {
		w.logger.Info("watching inbox", "dir", w.inbox, "existing", len(existing))
		for _, path := range existing {
			w.touch(path, time.Time{})
		}

		ticker := time.NewTicker(w.settle / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-fsw.Events:
				if !ok {
					return nil
				}
				if isManifest(ev.Name) && ev.Has(fsnotify.Create|fsnotify.Write) {
					w.touch(ev.Name, time.Now())
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return nil
				}
				w.logger.Warn("inbox watcher error", "error", err)
			case now := <-ticker.C:
				for _, path := range w.ready(now) {
					select {
					case queue <- path:
					case <-ctx.Done():
						return nil
					}
				}
			}
		}
	})

	return g.Wait()
}

func (w *Watcher) process(ctx context.Context, path string) {
	defer func() {
		w.mu.Lock()
		delete(w.queued, path)
		w.mu.Unlock()
	}()

	job, err := w.handler.Handle(ctx, path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if w.onJob != nil {
		w.onJob(job, err)
	}
}

// touch records activity on path; a zero time makes it ready immediately.
func (w *Watcher) touch(path string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.queued[path] {
		return
	}
	w.pending[path] = at
}

// ready returns pending manifests that have been quiet for the settle period.
func (w *Watcher) ready(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var paths []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.settle {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	for _, path := range paths {
		delete(w.pending, path)
		w.queued[path] = true
	}
	return paths
}

// scan lists manifests already in the inbox, sorted by name.
func (w *Watcher) scan() ([]string, error) {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && isManifest(e.Name()) {
			paths = append(paths, filepath.Join(w.inbox, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func isManifest(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ManifestSuffix) && !strings.HasPrefix(base, ".")
}
