package main

import (
	"github.com/spf13/cobra"

	"github.com/pagedeck/pagedeck/internal/export"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <input> <output>",
	Short: "Convert a saved output between JSON, YAML and XLSX",
	Long: `Export reads a JSON or YAML output written by extract or watch and writes it
in another format. The output format comes from --format or the file extension.

Examples:
  pagedeck export exam.out.json exam.xlsx
  pagedeck export deck.out.json deck.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := export.ReadFile(args[0])
		if err != nil {
			return err
		}
		format, err := outputFileFormat(args[1], exportFormat)
		if err != nil {
			return err
		}
		if err := export.WriteFile(args[1], out, format); err != nil {
			return err
		}
		logger.Info("exported", "from", args[0], "to", args[1], "format", format)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "output format: json, yaml or xlsx (default: from extension)")
}
