// Package management implements portwayctl's management-passphrase commands.
package management

import "github.com/spf13/cobra"

// Cmd is the parent command for management-record administration.
var Cmd = &cobra.Command{
	Use:   "management",
	Short: "Manage the admin passphrase record",
	Long: `Bootstrap and rotate the passphrase that gates the gateway's token
management surface.`,
}

func init() {
	Cmd.AddCommand(bootstrapCmd)
	Cmd.AddCommand(changePassphraseCmd)
	Cmd.AddCommand(verifyCmd)
}
