package config

import (
	"fmt"

	"github.com/marmos91/dirmigrate/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the dirmigrate configuration.

Checks for syntax errors, missing required fields and invalid values, then
warns about settings that are valid but probably unintended.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.MustLoad(path)
		if err != nil {
			return err
		}

		displayPath := path
		if displayPath == "" {
			displayPath = config.GetDefaultConfigPath()
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
		_, _ = fmt.Fprintln(out, "Validation: OK")

		if warnings := warningsFor(cfg); len(warnings) > 0 {
			_, _ = fmt.Fprintln(out, "\nWarnings:")
			for _, w := range warnings {
				_, _ = fmt.Fprintf(out, "  - %s\n", w)
			}
		}

		_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
		_, _ = fmt.Fprintf(out, "  User pool:       %s\n", cfg.Directory.PoolID)
		_, _ = fmt.Fprintf(out, "  Database type:   %s\n", cfg.Database.Type)
		_, _ = fmt.Fprintf(out, "  Apply dataset:   %s\n", cfg.Apply.Type)
		_, _ = fmt.Fprintf(out, "  Privacy:         %t\n", cfg.Privacy.Enabled)
		_, _ = fmt.Fprintf(out, "  Dry run:         %t\n", cfg.Migration.DryRun)
		return nil
	},
}

func warningsFor(cfg *config.Config) []string {
	var warnings []string
	if cfg.Directory.PoolID == "" {
		warnings = append(warnings, "directory.pool_id is not set; pass --pool-id to run")
	}
	if !cfg.Privacy.Enabled {
		warnings = append(warnings, "privacy is disabled; contacts are stored in clear")
	}
	if cfg.Apply.Type == config.ApplyNone {
		warnings = append(warnings, "no apply dataset configured; every identity will count as unmatched")
	}
	if cfg.Database.AutoMigrate {
		warnings = append(warnings, "database.auto_migrate is enabled; only use it against throwaway databases")
	}
	return warnings
}
