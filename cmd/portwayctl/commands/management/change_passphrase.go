package management

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melosso/portway/internal/cliutil"
	"github.com/melosso/portway/internal/cliutil/prompt"
)

var changePassphraseCmd = &cobra.Command{
	Use:   "change-passphrase",
	Short: "Change the management passphrase",
	RunE:  runChangePassphrase,
}

func runChangePassphrase(cmd *cobra.Command, args []string) error {
	store, err := cliutil.OpenManagementStore()
	if err != nil {
		return err
	}

	current, err := prompt.Password("Current passphrase", 0)
	if err != nil {
		return err
	}
	next, err := prompt.PasswordWithConfirmation("New passphrase", "Confirm new passphrase", 12)
	if err != nil {
		return err
	}

	if err := store.ChangePassphrase(current, next); err != nil {
		return fmt.Errorf("change passphrase: %w", err)
	}
	cliutil.PrintSuccess("management passphrase changed")
	return nil
}
