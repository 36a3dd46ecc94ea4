package management

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melosso/portway/internal/cliutil"
	"github.com/melosso/portway/internal/cliutil/prompt"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the management passphrase without changing it",
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	store, err := cliutil.OpenManagementStore()
	if err != nil {
		return err
	}

	passphrase, err := prompt.Password("Management passphrase", 0)
	if err != nil {
		return err
	}

	if err := store.Verify(passphrase); err != nil {
		return fmt.Errorf("passphrase rejected: %w", err)
	}
	cliutil.PrintSuccess("passphrase verified")
	return nil
}
