// Package commands implements the dirmigrate CLI.
package commands

import (
	configcmd "github.com/marmos91/dirmigrate/cmd/dirmigrate/commands/config"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	configFile   string
	outputFormat string
	noColor      bool
)

var rootCmd = &cobra.Command{
	Use:   "dirmigrate",
	Short: "Migrate directory identities into the user service database",
	Long: `dirmigrate copies every identity of a Cognito user pool into the user
service database: departments and roles first, then one user per identity
with its role associations. Runs are idempotent and can be rehearsed with
--dry-run.

Configuration is read from $XDG_CONFIG_HOME/dirmigrate/config.yaml (or
--config), .env files and DIRMIGRATE_* environment variables.

Use "dirmigrate [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: $XDG_CONFIG_HOME/dirmigrate/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configcmd.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string {
	return configFile
}
