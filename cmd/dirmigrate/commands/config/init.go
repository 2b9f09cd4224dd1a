package config

import (
	"fmt"

	"github.com/marmos91/dirmigrate/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a configuration file with defaults and a freshly generated
privacy secret. The file is created with 0600 permissions.

Without --config the file goes to $XDG_CONFIG_HOME/dirmigrate/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")

		if path == "" {
			p, err := config.InitConfig(initForce)
			if err != nil {
				return err
			}
			path = p
		} else if err := config.InitConfigToPath(path, initForce); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
}
