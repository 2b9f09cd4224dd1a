// Package config implements the configuration commands.
package config

import "github.com/spf13/cobra"

// Cmd is the parent command for configuration management.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Create, inspect and validate the dirmigrate configuration file.

Examples:
  # Write a starter configuration with a fresh privacy secret
  dirmigrate config init

  # Print the effective configuration (file, .env and environment merged)
  dirmigrate config show

  # Check a configuration file
  dirmigrate config validate --config ./migrate.yaml`,
}

func init() {
	Cmd.AddCommand(initCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(schemaCmd)
}
