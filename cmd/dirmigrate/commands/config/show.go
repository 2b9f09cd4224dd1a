package config

import (
	"github.com/marmos91/dirmigrate/internal/cli/output"
	"github.com/marmos91/dirmigrate/pkg/config"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after .env files, the config file, environment
variables and defaults have been merged. Secrets are not printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.MustLoad(path)
		if err != nil {
			return err
		}
		redact(cfg)
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	},
}

const redacted = "********"

func redact(cfg *config.Config) {
	for _, s := range []*string{
		&cfg.Privacy.Secret,
		&cfg.Database.Postgres.Password,
		&cfg.Directory.SecretAccessKey,
		&cfg.Apply.Postgres.Password,
		&cfg.Apply.S3.SecretAccessKey,
	} {
		if *s != "" {
			*s = redacted
		}
	}
}
