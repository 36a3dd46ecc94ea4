package token

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/melosso/portway/internal/cliutil"
	"github.com/melosso/portway/pkg/authcore"
)

var listUsername string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List issued tokens",
	Long: `List issued tokens, optionally filtered to one username.

Examples:
  portwayctl token list
  portwayctl token list --username alice`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listUsername, "username", "", "filter by owning username")
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := cliutil.OpenTokenStore()
	if err != nil {
		return err
	}
	tokens, err := authcore.List(store, listUsername)
	if err != nil {
		return err
	}

	rows := make(tokenList, 0, len(tokens))
	for _, t := range tokens {
		rows = append(rows, toRow(t))
	}
	return cliutil.PrintResource(os.Stdout, tokens, rows)
}

func toRow(t authcore.Token) tokenRow {
	scopes := cliutil.EmptyOr(strings.Join(t.DecodedScopes(), ","), "all")
	envs := cliutil.EmptyOr(strings.Join(t.DecodedEnvironments(), ","), "all")
	expires := "never"
	if t.ExpiresAt != nil {
		expires = t.ExpiresAt.Format("2006-01-02T15:04:05Z")
	}
	return tokenRow{
		ID:           t.ID,
		Username:     t.Username,
		Description:  cliutil.EmptyOr(t.Description, "-"),
		Scopes:       scopes,
		Environments: envs,
		Revoked:      cliutil.BoolToYesNo(t.Revoked),
		ExpiresAt:    expires,
	}
}
