// Package ingest loads source documents and hint images from disk, and runs
// job manifests dropped into an inbox directory.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pagedeck/pagedeck/internal/types"
)

// Document and Image are the loader's outputs.
type (
	Document = types.Document
	Image    = types.Image
)

var (
	// ErrUnsupportedType is returned for files that are neither PDF nor image.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNoImages is returned when a hint directory holds no images.
	ErrNoImages = errors.New("no images found")
)

// Loader reads documents and hint images.
type Loader interface {
	LoadDocument(path string) (*Document, error)
	LoadHints(paths []string) ([]Image, error)
}

// FileLoader loads from the local filesystem. PDFs are validated and their
// pages counted with pdfcpu; a single image counts as a one-page document.
type FileLoader struct {
	Logger *slog.Logger
}

// NewFileLoader creates a FileLoader.
func NewFileLoader(logger *slog.Logger) *FileLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileLoader{Logger: logger}
}

// LoadDocument reads a PDF or image document.
func (l *FileLoader) LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	mime := detectMIME(data)
	doc := &Document{
		Name:     filepath.Base(path),
		Data:     data,
		MIMEType: mime,
	}

	switch {
	case mime == "application/pdf":
		count, err := pdfPageCount(data)
		if err != nil {
			return nil, fmt.Errorf("invalid PDF %s: %w", path, err)
		}
		doc.PageCount = count
	case strings.HasPrefix(mime, "image/"):
		doc.PageCount = 1
	default:
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, path, mime)
	}

	l.logger().Debug("loaded document", "file", doc.Name, "mime", mime, "pages", doc.PageCount)
	return doc, nil
}

// LoadHints reads hint images. A directory expands to the images it contains,
// ordered by numeric suffix; files keep the order given.
func (l *FileLoader) LoadHints(paths []string) ([]Image, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("hint not found: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := imageFiles(p)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("%w in %s", ErrNoImages, p)
		}
		files = append(files, sortByNumber(found)...)
	}

	images := make([]Image, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read hint: %w", err)
		}
		mime := detectMIME(data)
		if !strings.HasPrefix(mime, "image/") {
			return nil, fmt.Errorf("%w: hint %s is %s", ErrUnsupportedType, f, mime)
		}
		images = append(images, Image{Name: filepath.Base(f), Data: data, MIMEType: mime})
	}

	l.logger().Debug("loaded hints", "count", len(images))
	return images, nil
}

func (l *FileLoader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// pdfPageCount validates a PDF in relaxed mode and returns its page count.
func pdfPageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	count, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	if count == 0 {
		return 0, errors.New("document has no pages")
	}
	return count, nil
}

func detectMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return mime
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

// imageFiles lists the image files directly inside dir.
func imageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read hint directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

var numericSuffix = regexp.MustCompile(`[-_](\d+)\.[A-Za-z0-9]+$`)

// sortByNumber sorts paths by their numeric suffix.
// e.g., ["hint-2.png", "hint-1.png", "hint-10.png"] -> ["hint-1.png", "hint-2.png", "hint-10.png"]
func sortByNumber(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	sort.SliceStable(sorted, func(i, j int) bool {
		mi := numericSuffix.FindStringSubmatch(sorted[i])
		mj := numericSuffix.FindStringSubmatch(sorted[j])

		// If both have numbers, sort numerically
		if len(mi) > 1 && len(mj) > 1 {
			ni, _ := strconv.Atoi(mi[1])
			nj, _ := strconv.Atoi(mj[1])
			if ni != nj {
				return ni < nj
			}
			return sorted[i] < sorted[j]
		}

		// Files without numbers come first
		if len(mi) > 1 {
			return false
		}
		if len(mj) > 1 {
			return true
		}

		// Both without numbers: alphabetical
		return sorted[i] < sorted[j]
	})

	return sorted
}

var trailingNumber = regexp.MustCompile(`[-_]\d+$`)

// deriveName extracts a display name from a file path.
// e.g., "unit-3-vocab.pdf" -> "unit-3-vocab"
// e.g., "worksheet-1.pdf" -> "worksheet"
func deriveName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.TrimSuffix(name, ".job")
	return trailingNumber.ReplaceAllString(name, "")
}
