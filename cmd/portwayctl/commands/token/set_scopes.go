package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melosso/portway/internal/cliutil"
	"github.com/melosso/portway/pkg/authcore"
)

var setScopesCmd = &cobra.Command{
	Use:   "set-scopes <token-id> <comma-separated-endpoints>",
	Short: "Replace a token's endpoint scope list",
	Long: `Replace a token's endpoint scope list. Pass an empty string to grant
access to every endpoint.

Example:
  portwayctl token set-scopes pw_abc123 "crm/customers,crm/orders"`,
	Args: cobra.ExactArgs(2),
	RunE: runSetScopes,
}

func runSetScopes(cmd *cobra.Command, args []string) error {
	store, err := cliutil.OpenTokenStore()
	if err != nil {
		return err
	}
	if err := authcore.UpdateScopes(store, args[0], splitCSV(args[1])); err != nil {
		return fmt.Errorf("set scopes: %w", err)
	}
	cliutil.PrintSuccess(fmt.Sprintf("token %q scopes updated", args[0]))
	return nil
}
