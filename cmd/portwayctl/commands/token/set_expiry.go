package token

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/melosso/portway/internal/cliutil"
	"github.com/melosso/portway/pkg/authcore"
)

var setExpiryCmd = &cobra.Command{
	Use:   "set-expiry <token-id> <duration-from-now|never>",
	Short: "Change when a token expires",
	Long: `Change when a token expires, relative to now. Pass "never" to clear
expiry.

Examples:
  portwayctl token set-expiry pw_abc123 720h
  portwayctl token set-expiry pw_abc123 never`,
	Args: cobra.ExactArgs(2),
	RunE: runSetExpiry,
}

func runSetExpiry(cmd *cobra.Command, args []string) error {
	store, err := cliutil.OpenTokenStore()
	if err != nil {
		return err
	}

	var expiresAt *time.Time
	if args[1] != "never" {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", args[1], err)
		}
		t := time.Now().UTC().Add(d)
		expiresAt = &t
	}

	if err := authcore.UpdateExpiry(store, args[0], expiresAt); err != nil {
		return fmt.Errorf("set expiry: %w", err)
	}
	cliutil.PrintSuccess(fmt.Sprintf("token %q expiry updated", args[0]))
	return nil
}
