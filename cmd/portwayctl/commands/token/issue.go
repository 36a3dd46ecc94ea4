package token

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/melosso/portway/internal/cliutil"
	"github.com/melosso/portway/internal/cliutil/output"
	"github.com/melosso/portway/pkg/authcore"
)

var (
	issueUsername    string
	issueDescription string
	issueScopes      string
	issueEnvs        string
	issueExpiresIn   time.Duration
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a new bearer token",
	Long: `Issue a new bearer token and print its one-time raw value. The raw
value is never retrievable again; only its hash is stored.

Examples:
  portwayctl token issue --username alice
  portwayctl token issue --username alice --scopes "crm/customers,crm/orders" --envs prod
  portwayctl token issue --username svc-billing --expires-in 720h`,
	RunE: runIssue,
}

func init() {
	issueCmd.Flags().StringVar(&issueUsername, "username", "", "owning username (required)")
	issueCmd.Flags().StringVar(&issueDescription, "description", "", "human-readable description")
	issueCmd.Flags().StringVar(&issueScopes, "scopes", "", "comma-separated endpoint full-paths (empty = all endpoints)")
	issueCmd.Flags().StringVar(&issueEnvs, "envs", "", "comma-separated environment names (empty = all environments)")
	issueCmd.Flags().DurationVar(&issueExpiresIn, "expires-in", 0, "token lifetime (e.g. 720h); 0 = never expires")
	_ = issueCmd.MarkFlagRequired("username")
}

func runIssue(cmd *cobra.Command, args []string) error {
	store, err := cliutil.OpenTokenStore()
	if err != nil {
		return err
	}

	p := authcore.IssueParams{
		Username:     issueUsername,
		Description:  issueDescription,
		Scopes:       splitCSV(issueScopes),
		Environments: splitCSV(issueEnvs),
	}
	if issueExpiresIn > 0 {
		exp := timeNowAdd(issueExpiresIn)
		p.ExpiresAt = &exp
	}

	issued, err := authcore.Issue(store, p)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	if format, _ := cliutil.OutputFormat(); format == "json" {
		return output.PrintJSON(os.Stdout, map[string]string{"id": issued.Token.ID, "token": issued.Raw})
	}

	fmt.Printf("Token issued for %q. Save this value now, it will not be shown again:\n\n", issueUsername)
	fmt.Println(issued.Raw)
	fmt.Printf("\nToken ID: %s\n", issued.Token.ID)
	return nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func timeNowAdd(d time.Duration) time.Time {
	return time.Now().UTC().Add(d)
}
