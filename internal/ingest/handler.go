package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pagedeck/pagedeck/internal/export"
	"github.com/pagedeck/pagedeck/internal/pipeline"
)

// Runner executes a pipeline request. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Runner    Runner // Required
	Loader    Loader // Defaults to a FileLoader
	OutboxDir string // Required; results and error reports are written here
	DoneDir   string // Required; handled manifests are moved here
	Logger    *slog.Logger
}

// Handler runs one manifest end to end: load inputs, run the pipeline,
// write the output to the outbox and retire the manifest.
type Handler struct {
	runner Runner
	loader Loader
	outbox string
	done   string
	logger *slog.Logger
}

// failureReport is written as <name>.error.json when a job fails.
type failureReport struct {
	JobID    string `json:"job_id"`
	Manifest string `json:"manifest"`
	Error    string `json:"error"`
	FailedAt string `json:"failed_at"`
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Runner == nil {
		return nil, errors.New("ingest: runner is required")
	}
	if cfg.OutboxDir == "" || cfg.DoneDir == "" {
		return nil, errors.New("ingest: outbox and done directories are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Loader == nil {
		cfg.Loader = NewFileLoader(cfg.Logger)
	}
	for _, dir := range []string{cfg.OutboxDir, cfg.DoneDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return &Handler{
		runner: cfg.Runner,
		loader: cfg.Loader,
		outbox: cfg.OutboxDir,
		done:   cfg.DoneDir,
		logger: cfg.Logger,
	}, nil
}

// Handle processes the manifest at path. The returned Job carries the outcome.
// A cancelled run leaves the manifest in place so it is picked up again.
func (h *Handler) Handle(ctx context.Context, path string) (*Job, error) {
	job, err := NewJob(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err != nil {
		h.logger.Error("job rejected", "manifest", filepath.Base(path), "error", err)
		h.reportFailure(path, "", err)
		h.retire(path)
		return nil, err
	}

	logger := h.logger.With("job_id", job.ID(), "job", job.Name())
	job.start()
	logger.Info("job started", "document", job.Manifest().Document, "pages", job.Manifest().Pages)

	outPath, err := h.run(ctx, job)
	job.finish(outPath, err)

	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("job interrupted", "error", err)
			return job, err
		}
		logger.Error("job failed", "error", err)
		h.reportFailure(path, job.ID(), err)
		h.retire(path)
		return job, err
	}

	h.retire(path)
	logger.Info("job complete", "output", outPath, "duration", job.Duration())
	return job, nil
}

func (h *Handler) run(ctx context.Context, job *Job) (string, error) {
	req, err := job.Request(h.loader)
	if err != nil {
		return "", err
	}

	result, err := h.runner.Run(ctx, req)
	if err != nil {
		return "", err
	}

	format, err := export.ParseFormat(job.Manifest().Format)
	if err != nil {
		return "", err
	}
	outPath := filepath.Join(h.outbox, job.Name()+".out"+format.Extension())
	if err := export.WriteFile(outPath, result.Output, format); err != nil {
		return "", err
	}
	return outPath, nil
}

// retire moves a manifest out of the inbox.
func (h *Handler) retire(path string) {
	dst := filepath.Join(h.done, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		h.logger.Warn("failed to move manifest", "manifest", path, "error", err)
	}
}

func (h *Handler) reportFailure(path, jobID string, cause error) {
	name := filepath.Base(path)
	report := failureReport{
		JobID:    jobID,
		Manifest: name,
		Error:    cause.Error(),
		FailedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return
	}
	dst := filepath.Join(h.outbox, strings.TrimSuffix(name, ManifestSuffix)+".error.json")
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		h.logger.Warn("failed to write error report", "path", dst, "error", err)
	}
}
