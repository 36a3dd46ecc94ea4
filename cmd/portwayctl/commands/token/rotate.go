package token

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/melosso/portway/internal/cliutil"
	"github.com/melosso/portway/internal/cliutil/output"
	"github.com/melosso/portway/pkg/authcore"
)

var rotateCmd = &cobra.Command{
	Use:   "rotate <token-id>",
	Short: "Rotate a bearer token, keeping its scopes and environments",
	Long: `Revoke <token-id> and issue a replacement token with the same username,
scopes, and environments. Print its one-time raw value.`,
	Args: cobra.ExactArgs(1),
	RunE: runRotate,
}

func runRotate(cmd *cobra.Command, args []string) error {
	store, err := cliutil.OpenTokenStore()
	if err != nil {
		return err
	}
	issued, err := authcore.Rotate(store, args[0])
	if err != nil {
		return fmt.Errorf("rotate token: %w", err)
	}

	if format, _ := cliutil.OutputFormat(); format == "json" {
		return output.PrintJSON(os.Stdout, map[string]string{"id": issued.Token.ID, "token": issued.Raw})
	}

	fmt.Println("Token rotated. Save this value now, it will not be shown again:")
	fmt.Println()
	fmt.Println(issued.Raw)
	fmt.Printf("\nNew token ID: %s\n", issued.Token.ID)
	return nil
}
