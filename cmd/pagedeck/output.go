package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// structuredFormat is the encoding for command results (not pipeline output).
type structuredFormat string

const (
	outputYAML structuredFormat = "yaml"
	outputJSON structuredFormat = "json"
)

// printStructured writes data to w in the --output format.
func printStructured(w io.Writer, data any) error {
	switch structuredFormat(outputFormat) {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}
