// Package commands implements portwayctl's cobra commands. portwayctl is
// an in-process admin tool: it opens the same token store and management
// record the running gateway uses (via the same config file) rather than
// calling the gateway over HTTP, since token issuance needs direct
// database access regardless of whether the gateway process is up.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/melosso/portway/cmd/portwayctl/commands/management"
	"github.com/melosso/portway/cmd/portwayctl/commands/token"
	"github.com/melosso/portway/internal/cliutil"
)

var rootCmd = &cobra.Command{
	Use:   "portwayctl",
	Short: "Administer Portway bearer tokens and the management passphrase",
	Long: `portwayctl manages bearer tokens and the admin management record for a
Portway gateway deployment, operating directly against the same token
store and config the gateway server uses.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cliutil.Flags.ConfigFile, "config", "", "config file (default: $XDG_CONFIG_HOME/portway/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&cliutil.Flags.Output, "output", "o", "table", "output format: table, json")

	rootCmd.AddCommand(token.Cmd)
	rootCmd.AddCommand(management.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
