// Package home resolves the pagedeck home directory layout.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the pagedeck home directory.
	DefaultDirName = ".pagedeck"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// PromptsDirName holds on-disk prompt overrides.
	PromptsDirName = "prompts"

	// InboxDirName is watched for job manifests.
	InboxDirName = "inbox"

	// OutboxDirName receives job outputs.
	OutboxDirName = "outbox"

	// DoneDirName receives manifests once their job has finished.
	DoneDirName = "done"

	// TracesDirName holds JSONL call traces.
	TracesDirName = "traces"
)

// Dir represents the pagedeck home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.pagedeck).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// PromptsPath returns the default prompt override directory.
func (d *Dir) PromptsPath() string {
	return filepath.Join(d.path, PromptsDirName)
}

// InboxPath returns the directory watched for job manifests.
func (d *Dir) InboxPath() string {
	return filepath.Join(d.path, InboxDirName)
}

// OutboxPath returns the directory job outputs are written to.
func (d *Dir) OutboxPath() string {
	return filepath.Join(d.path, OutboxDirName)
}

// DonePath returns the directory finished manifests are moved to.
func (d *Dir) DonePath() string {
	return filepath.Join(d.path, DoneDirName)
}

// TracesPath returns the directory for JSONL call traces.
func (d *Dir) TracesPath() string {
	return filepath.Join(d.path, TracesDirName)
}

// EnsureExists creates the home directory and its subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.PromptsPath(), d.InboxPath(), d.OutboxPath(), d.DonePath(), d.TracesPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
