package commands

import (
	"fmt"

	"github.com/marmos91/dirmigrate/pkg/config"
	"github.com/marmos91/dirmigrate/pkg/privacy"
	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash <contact>",
	Short: "Print the lookup hash of a contact",
	Long: `Print the lookup hash stored in the contact column for a contact value.

Use it to find a migrated user by e-mail address when contact protection is
enabled. The privacy secret must match the one used by the run.

Examples:
  dirmigrate hash alice@example.gov.uk`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTransformer()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.Hash(args[0]))
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <ciphertext>",
	Short: "Recover a contact from its encrypted envelope",
	Long: `Decrypt an encrypted_contact value written by a run.

The envelope must carry the configured key namespace, key name and every
encryption context pair, otherwise decryption is refused.

Examples:
  dirmigrate decrypt "$(psql -Atc 'select encrypted_contact from users limit 1')"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTransformer()
		if err != nil {
			return err
		}
		contact, err := t.Unprotect(args[0])
		if err != nil {
			return fmt.Errorf("failed to decrypt: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), contact)
		return nil
	},
}

// loadTransformer builds the privacy transform from configuration whether
// or not protection is enabled for runs.
func loadTransformer() (*privacy.Transformer, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	return privacy.New(cfg.Privacy)
}
