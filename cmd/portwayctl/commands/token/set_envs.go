package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melosso/portway/internal/cliutil"
	"github.com/melosso/portway/pkg/authcore"
)

var setEnvsCmd = &cobra.Command{
	Use:   "set-envs <token-id> <comma-separated-environments>",
	Short: "Replace a token's allowed-environment list",
	Long: `Replace a token's allowed-environment list. Pass an empty string to
grant access to every environment.`,
	Args: cobra.ExactArgs(2),
	RunE: runSetEnvs,
}

func runSetEnvs(cmd *cobra.Command, args []string) error {
	store, err := cliutil.OpenTokenStore()
	if err != nil {
		return err
	}
	if err := authcore.UpdateEnvironments(store, args[0], splitCSV(args[1])); err != nil {
		return fmt.Errorf("set environments: %w", err)
	}
	cliutil.PrintSuccess(fmt.Sprintf("token %q environments updated", args[0]))
	return nil
}
