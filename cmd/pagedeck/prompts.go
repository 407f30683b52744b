package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pagedeck/pagedeck/internal/config"
	"github.com/pagedeck/pagedeck/internal/home"
	"github.com/pagedeck/pagedeck/internal/pipeline"
	"github.com/pagedeck/pagedeck/internal/prompts"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect and customize prompt templates",
	Long: `Prompt templates are embedded in the binary. A file named <key>.tmpl in the
override directory (prompts.override_dir, default ~/.pagedeck/prompts) replaces
the embedded text for that key.`,
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompt keys and whether they are overridden",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := promptResolver()
		if err != nil {
			return err
		}

		type promptView struct {
			Key         string   `json:"key" yaml:"key"`
			Description string   `json:"description" yaml:"description"`
			Variables   []string `json:"variables,omitempty" yaml:"variables,omitempty"`
			CID         string   `json:"cid" yaml:"cid"`
			Override    string   `json:"override,omitempty" yaml:"override,omitempty"`
		}
		var views []promptView
		for _, p := range resolver.AllEmbedded() {
			resolved, err := resolver.Resolve(p.Key)
			if err != nil {
				return err
			}
			view := promptView{
				Key:         p.Key,
				Description: p.Description,
				Variables:   resolved.Variables,
				CID:         shortHash(resolved.CID),
			}
			if resolved.IsOverride {
				view.Override = resolved.Source
			}
			views = append(views, view)
		}
		return printStructured(cmd.OutOrStdout(), views)
	},
}

var promptsWriteCmd = &cobra.Command{
	Use:   "write [dir]",
	Short: "Write the embedded prompts to a directory for editing",
	Long: `Write copies every embedded prompt to <dir>/<key>.tmpl (default: the override
directory). Existing files are left alone.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := promptOverrideDir()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			dir = args[0]
		}

		written, err := pipeline.NewPromptResolver("", logger).WriteDefaults(dir)
		for _, path := range written {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		if err != nil {
			return err
		}
		if len(written) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "all prompts already present in %s\n", dir)
		}
		return nil
	},
}

func init() {
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsWriteCmd)
}

func promptOverrideDir() (string, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return "", err
	}
	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return "", err
	}
	if dir := mgr.Get().Prompts.OverrideDir; dir != "" {
		return dir, nil
	}
	return h.PromptsPath(), nil
}

func promptResolver() (*prompts.Resolver, error) {
	dir, err := promptOverrideDir()
	if err != nil {
		return nil, err
	}
	return pipeline.NewPromptResolver(dir, logger), nil
}

func shortHash(cid string) string {
	if len(cid) > 12 {
		return cid[:12]
	}
	return cid
}
