package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/parley/core/config"
	"github.com/adalundhe/parley/core/storage"
)

var configShowSecrets bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after layering defaults, the user file, the
project file, the project-local file and PARLEY_* environment variables.`,
	RunE: runConfigShow,
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the config files that are read, in layering order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr := config.NewManager(storage.ResolveDirs(), projectRoot, slog.Default())
		for _, p := range mgr.Paths() {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathsCmd)
	configShowCmd.Flags().BoolVar(&configShowSecrets, "secrets", false, "print secrets instead of masking them")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(storage.ResolveDirs(), slog.Default())
	if err != nil {
		return err
	}
	shown := *cfg
	if !configShowSecrets {
		maskSecrets(&shown)
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func maskSecrets(cfg *config.Config) {
	for _, s := range []*string{
		&cfg.Skills.Workflow.APIKey,
		&cfg.Providers.Anthropic.APIKey,
		&cfg.Providers.OpenAI.APIKey,
		&cfg.Storage.Redis.Password,
	} {
		if *s != "" {
			*s = "********"
		}
	}
}
