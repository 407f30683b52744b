package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pagedeck/pagedeck/internal/config"
	"github.com/pagedeck/pagedeck/internal/home"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Long: `Init writes the default configuration to --config, or to ~/.pagedeck/config.yaml,
and creates the home directory layout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		path := cfgFile
		if path == "" {
			path = h.ConfigPath()
		}
		if fileExists(path) && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Show prints the configuration after defaults, the config file and PAGEDECK_*
environment overrides are applied. Literal API keys are masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		mgr, err := config.NewManager(cfgFile, h.Path())
		if err != nil {
			return err
		}
		cfg := *mgr.Get()
		cfg.LLMProviders = make(map[string]config.LLMProviderCfg, len(mgr.Get().LLMProviders))
		for name, p := range mgr.Get().LLMProviders {
			p.APIKey = maskKey(p.APIKey)
			cfg.LLMProviders[name] = p
		}

		if path := mgr.ConfigFileUsed(); path != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "# from %s\n", path)
		}
		return printStructured(cmd.OutOrStdout(), cfg)
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List config keys with their defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		type keyView struct {
			Key         string `json:"key" yaml:"key"`
			Default     any    `json:"default" yaml:"default"`
			Description string `json:"description" yaml:"description"`
		}
		var views []keyView
		for _, key := range config.Keys() {
			e := config.GetDefault(key)
			views = append(views, keyView{Key: e.Key, Default: e.Value, Description: e.Description})
		}
		return printStructured(cmd.OutOrStdout(), views)
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configKeysCmd)
}

// maskKey hides literal secrets but keeps ${ENV_VAR} references readable.
func maskKey(key string) string {
	if key == "" || strings.HasPrefix(key, "${") {
		return key
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
