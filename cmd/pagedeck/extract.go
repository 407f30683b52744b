package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagedeck/pagedeck/internal/cache"
	"github.com/pagedeck/pagedeck/internal/export"
	"github.com/pagedeck/pagedeck/internal/ingest"
	"github.com/pagedeck/pagedeck/internal/metrics"
	"github.com/pagedeck/pagedeck/internal/pipeline"
	"github.com/pagedeck/pagedeck/internal/types"
)

var (
	extractPages       string
	extractHints       []string
	extractKind        string
	extractInstruction string
	extractDeckName    string
	extractLanguage    string
	extractOut         string
	extractFormat      string
	extractStats       bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <document>",
	Short: "Extract questions or a vocabulary deck from a document",
	Long: `Extract runs the full pipeline on a PDF (or a single page image) and writes
the assembled output.

Hints are images of the questions to look for; pass files or a directory
(files in a directory are ordered by numeric suffix: hint-2.png before hint-10.png).

Examples:
  pagedeck extract exam.pdf --pages 3-5
  pagedeck extract exam.pdf --pages 3-5 --hints ./hints --out exam.xlsx
  pagedeck extract vocab.pdf --pages 12 --kind deck --language Spanish --stats`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := types.ParseDocumentKind(extractKind)
		if err != nil {
			return err
		}
		format, err := outputFileFormat(extractOut, extractFormat)
		if err != nil {
			return err
		}
		if format == export.FormatXLSX && extractOut == "" {
			return errors.New("xlsx output needs --out")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		orch, lease, err := a.orchestrator(a.config.Get())
		if err != nil {
			return err
		}
		defer lease.Release()

		loader := ingest.NewFileLoader(logger)
		doc, err := loader.LoadDocument(args[0])
		if err != nil {
			return err
		}

		pages := types.PageRange{Start: 1, End: doc.PageCount}
		if extractPages != "" {
			if pages, err = types.ParsePageRange(extractPages); err != nil {
				return err
			}
		}

		var hints []types.Image
		if len(extractHints) > 0 {
			if hints, err = loader.LoadHints(extractHints); err != nil {
				return err
			}
		}

		result, err := orch.Run(cmd.Context(), pipeline.Request{
			Document:    doc,
			Hints:       hints,
			Pages:       pages,
			Kind:        kind,
			Instruction: extractInstruction,
			DeckName:    extractDeckName,
			Language:    extractLanguage,
		})
		if err != nil {
			return err
		}

		if extractOut != "" {
			if err := export.WriteFile(extractOut, result.Output, format); err != nil {
				return err
			}
			logger.Info("wrote output", "file", extractOut, "format", format)
		} else if err := export.Write(cmd.OutOrStdout(), result.Output, format); err != nil {
			return err
		}

		if extractStats {
			return printStructured(cmd.ErrOrStderr(), newRunStats(result, orch.Cache()))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractPages, "pages", "p", "", `page range, "7" or "3-9" (default: every page)`)
	extractCmd.Flags().StringSliceVar(&extractHints, "hints", nil, "hint image files or directories")
	extractCmd.Flags().StringVar(&extractKind, "kind", string(types.KindQuestions), "document kind: questions or deck")
	extractCmd.Flags().StringVar(&extractInstruction, "instruction", "", "extra instruction passed to every prompt")
	extractCmd.Flags().StringVar(&extractDeckName, "deck-name", "", "deck name (default: proposed by the model)")
	extractCmd.Flags().StringVar(&extractLanguage, "language", "", "translation language for decks (default: config defaults.language)")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "output file (default: stdout)")
	extractCmd.Flags().StringVar(&extractFormat, "format", "", "output format: json, yaml or xlsx (default: from --out extension, else json)")
	extractCmd.Flags().BoolVar(&extractStats, "stats", false, "print call metrics and cache statistics to stderr")
}

// outputFileFormat picks the explicit format, else the file extension, else JSON.
func outputFileFormat(path, explicit string) (export.Format, error) {
	if explicit != "" || path == "" {
		return export.ParseFormat(explicit)
	}
	return export.FormatFromPath(path)
}

// runStats is the --stats report.
type runStats struct {
	RunID       string                     `json:"run_id" yaml:"run_id"`
	Duration    string                     `json:"duration" yaml:"duration"`
	Groups      int                        `json:"groups" yaml:"groups"`
	Transitions []string                   `json:"transitions" yaml:"transitions"`
	Summary     metrics.Summary            `json:"summary" yaml:"summary"`
	Stages      map[string]metrics.Summary `json:"stages" yaml:"stages"`
	CostByModel map[string]float64         `json:"cost_by_model" yaml:"cost_by_model"`
	Cache       *cacheStats                `json:"cache,omitempty" yaml:"cache,omitempty"`
}

type cacheStats struct {
	Size int    `json:"size" yaml:"size"`
	Max  int    `json:"max" yaml:"max"`
	TTL  string `json:"ttl" yaml:"ttl"`
}

func newRunStats(r *pipeline.Result, c *cache.ResponseCache) runStats {
	stats := runStats{
		RunID:       r.RunID,
		Duration:    r.Duration.Round(time.Millisecond).String(),
		Groups:      len(r.Groups),
		Summary:     r.Summary(),
		Stages:      r.Metrics.StageSummaries(),
		CostByModel: r.Metrics.CostByModel(),
	}
	for _, t := range r.Transitions {
		stats.Transitions = append(stats.Transitions, string(t.State))
	}
	if c != nil {
		s := c.Stats()
		stats.Cache = &cacheStats{Size: s.Size, Max: s.Max, TTL: s.TTL.String()}
	}
	return stats
}
