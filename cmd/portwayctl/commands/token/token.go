// Package token implements portwayctl's bearer-token management commands.
package token

import "github.com/spf13/cobra"

// Cmd is the parent command for token management.
var Cmd = &cobra.Command{
	Use:   "token",
	Short: "Manage bearer tokens",
	Long: `Issue, list, revoke, and rotate the bearer tokens clients present to the
gateway's Authorization header.`,
}

func init() {
	Cmd.AddCommand(issueCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(revokeCmd)
	Cmd.AddCommand(rotateCmd)
	Cmd.AddCommand(setScopesCmd)
	Cmd.AddCommand(setEnvsCmd)
	Cmd.AddCommand(setExpiryCmd)
}

// tokenList renders a slice of tokens as a table.
type tokenList []tokenRow

type tokenRow struct {
	ID           string
	Username     string
	Description  string
	Scopes       string
	Environments string
	Revoked      string
	ExpiresAt    string
}

func (l tokenList) Headers() []string {
	return []string{"ID", "USERNAME", "DESCRIPTION", "SCOPES", "ENVIRONMENTS", "REVOKED", "EXPIRES"}
}

func (l tokenList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, t := range l {
		rows = append(rows, []string{t.ID, t.Username, t.Description, t.Scopes, t.Environments, t.Revoked, t.ExpiresAt})
	}
	return rows
}
