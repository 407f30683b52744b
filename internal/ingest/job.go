package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pagedeck/pagedeck/internal/export"
	"github.com/pagedeck/pagedeck/internal/pipeline"
	"github.com/pagedeck/pagedeck/internal/types"
)

// ManifestSuffix marks job manifests in the inbox.
const ManifestSuffix = ".job.yaml"

// ErrInvalidManifest wraps every manifest validation failure.
var ErrInvalidManifest = errors.New("invalid job manifest")

// Manifest describes one extraction job. Relative paths are resolved against
// the manifest's directory.
type Manifest struct {
	Document    string   `yaml:"document"`
	Hints       []string `yaml:"hints,omitempty"`
	Pages       string   `yaml:"pages"`
	Kind        string   `yaml:"kind,omitempty"`
	Instruction string   `yaml:"instruction,omitempty"`
	DeckName    string   `yaml:"deck_name,omitempty"`
	Language    string   `yaml:"language,omitempty"`
	Format      string   `yaml:"format,omitempty"`
}

// ReadManifest parses a manifest file. Unknown keys are rejected.
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m Manifest
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, filepath.Base(path), err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks required fields and enumerations.
func (m *Manifest) Validate() error {
	if m.Document == "" {
		return fmt.Errorf("%w: document is required", ErrInvalidManifest)
	}
	if _, err := types.ParsePageRange(m.Pages); err != nil {
		return fmt.Errorf("%w: pages: %v", ErrInvalidManifest, err)
	}
	if _, err := types.ParseDocumentKind(m.Kind); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if _, err := export.ParseFormat(m.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return nil
}

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is one manifest picked up from the inbox.
type Job struct {
	mu sync.Mutex

	id       string
	name     string
	path     string
	manifest *Manifest

	status     Status
	err        error
	outputPath string
	startedAt  time.Time
	finishedAt time.Time
}

// NewJob reads the manifest at path.
func NewJob(path string) (*Job, error) {
	m, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	return &Job{
		id:       uuid.NewString(),
		name:     strings.TrimSuffix(filepath.Base(path), ManifestSuffix),
		path:     path,
		manifest: m,
		status:   StatusPending,
	}, nil
}

// ID returns the job's unique ID.
func (j *Job) ID() string { return j.id }

// Name returns the manifest name without its suffix.
func (j *Job) Name() string { return j.name }

// Manifest returns the parsed manifest.
func (j *Job) Manifest() *Manifest { return j.manifest }

// Request loads the job's inputs into a pipeline request.
func (j *Job) Request(loader Loader) (pipeline.Request, error) {
	m := j.manifest
	base := filepath.Dir(j.path)

	pages, err := types.ParsePageRange(m.Pages)
	if err != nil {
		return pipeline.Request{}, err
	}
	kind, err := types.ParseDocumentKind(m.Kind)
	if err != nil {
		return pipeline.Request{}, err
	}

	doc, err := loader.LoadDocument(resolvePath(base, m.Document))
	if err != nil {
		return pipeline.Request{}, err
	}

	var hints []Image
	if len(m.Hints) > 0 {
		paths := make([]string, len(m.Hints))
		for i, h := range m.Hints {
			paths[i] = resolvePath(base, h)
		}
		hints, err = loader.LoadHints(paths)
		if err != nil {
			return pipeline.Request{}, err
		}
	}

	deckName := m.DeckName
	if deckName == "" && kind == types.KindDeck {
		deckName = deriveName(m.Document)
	}

	return pipeline.Request{
		Document:    doc,
		Hints:       hints,
		Pages:       pages,
		Kind:        kind,
		Instruction: m.Instruction,
		DeckName:    deckName,
		Language:    m.Language,
	}, nil
}

func (j *Job) start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusRunning
	j.startedAt = time.Now()
}

func (j *Job) finish(outputPath string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finishedAt = time.Now()
	j.outputPath = outputPath
	j.err = err
	if err != nil {
		j.status = StatusFailed
	} else {
		j.status = StatusDone
	}
}

// Status returns the current state and, once finished, the error if any.
func (j *Job) Status() (Status, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, j.err
}

// OutputPath returns where the result was written, once done.
func (j *Job) OutputPath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outputPath
}

// Duration returns how long the job ran.
func (j *Job) Duration() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finishedAt.IsZero() {
		return 0
	}
	return j.finishedAt.Sub(j.startedAt)
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
