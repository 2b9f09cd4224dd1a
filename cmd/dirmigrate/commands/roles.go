package commands

import (
	"github.com/marmos91/dirmigrate/internal/cli/output"
	"github.com/marmos91/dirmigrate/pkg/config"
	"github.com/spf13/cobra"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Show the directory token to role mapping",
	Long: `Print the effective role mapping: the built-in table with the
migration.role_mappings overrides from configuration applied.

Tokens missing from the table map to a role of the same name.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.MustLoad(GetConfigFile())
		if err != nil {
			return err
		}
		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		return printer.Print(output.RolesTable(cfg.Migration.Mapper().Entries()))
	},
}
