// Package export writes pipeline output as JSON, YAML or an XLSX workbook.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pagedeck/pagedeck/internal/types"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned for an unsupported format name or extension.
var ErrUnknownFormat = errors.New("unknown export format")

// ErrEmptyOutput is returned when the output carries no payload.
var ErrEmptyOutput = errors.New("output has no data")

// ParseFormat converts a format name to a Format. Empty defaults to JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q (want json, yaml or xlsx)", ErrUnknownFormat, s)
	}
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}

// Extension returns the file extension, with dot, for f.
func (f Format) Extension() string {
	return "." + string(f)
}

// Write encodes out to w in the given format.
func Write(w io.Writer, out types.Output, format Format) error {
	if out.Data == nil {
		return ErrEmptyOutput
	}
	switch format {
	case FormatJSON, "":
		return writeJSON(w, out)
	case FormatYAML:
		return writeYAML(w, out)
	case FormatXLSX:
		return writeXLSX(w, out)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteFile writes out to path. The file is only replaced once encoding succeeds.
func WriteFile(path string, out types.Output, format Format) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpName := tmp.Name()

	if err := Write(tmp, out, format); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// ReadFile decodes a JSON or YAML output file written by WriteFile.
func ReadFile(path string) (types.Output, error) {
	var out types.Output

	format, err := FormatFromPath(path)
	if err != nil {
		return out, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}

	switch format {
	case FormatJSON:
	case FormatYAML:
		data, err = yamlToJSON(data)
		if err != nil {
			return out, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return out, fmt.Errorf("%w: cannot read %s files", ErrUnknownFormat, format)
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return out, nil
}

func writeJSON(w io.Writer, out types.Output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}
