package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melosso/portway/internal/cliutil"
	"github.com/melosso/portway/pkg/authcore"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke <token-id>",
	Short: "Revoke a bearer token",
	Args:  cobra.ExactArgs(1),
	RunE:  runRevoke,
}

func runRevoke(cmd *cobra.Command, args []string) error {
	store, err := cliutil.OpenTokenStore()
	if err != nil {
		return err
	}
	if err := authcore.Revoke(store, args[0]); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	cliutil.PrintSuccess(fmt.Sprintf("token %q revoked", args[0]))
	return nil
}
