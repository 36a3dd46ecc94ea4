package management

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melosso/portway/internal/cliutil"
	"github.com/melosso/portway/internal/cliutil/prompt"
	"github.com/melosso/portway/pkg/management"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Set the initial management passphrase",
	Long: `Set the management passphrase for the first time. Fails if a passphrase
has already been set; use "management change-passphrase" to rotate it.`,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	store, err := cliutil.OpenManagementStore()
	if err != nil {
		return err
	}

	passphrase, err := prompt.PasswordWithConfirmation("Management passphrase", "Confirm passphrase", 12)
	if err != nil {
		return err
	}

	if err := store.Bootstrap(passphrase); err != nil {
		if err == management.ErrAlreadyBootstrapped {
			return fmt.Errorf("a management passphrase is already set; use 'portwayctl management change-passphrase'")
		}
		return err
	}

	cliutil.PrintSuccess("management passphrase set")
	return nil
}
