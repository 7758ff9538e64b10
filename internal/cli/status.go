package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	garth "github.com/garthlabs/garth-go"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored credential state without contacting the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			o1, o2, err := loadStoredTokens(cfg)
			if err != nil {
				if garth.IsAuthError(err) {
					fmt.Fprintln(out, "Not logged in")
					return nil
				}
				return err
			}

			printStatus(out, o1, o2)
			return nil
		},
	}
}

func printStatus(out io.Writer, o1 *garth.OAuth1Token, o2 *garth.OAuth2Token) {
	fmt.Fprintf(out, "Domain:        %s\n", o1.Domain)
	fmt.Fprintf(out, "OAuth1 token:  %s\n", truncate(o1.Token, 12))
	if o1.MFAToken != "" {
		fmt.Fprintf(out, "MFA token:     present\n")
	}

	expiry := time.Unix(o2.ExpiresAt, 0)
	if o2.Expired() {
		fmt.Fprintf(out, "OAuth2 token:  expired %s (refreshes on next use)\n",
			expiry.Format(time.RFC3339))
	} else {
		fmt.Fprintf(out, "OAuth2 token:  valid until %s\n", expiry.Format(time.RFC3339))
	}

	if o2.RefreshTokenExpiresAt != 0 {
		refreshExpiry := time.Unix(o2.RefreshTokenExpiresAt, 0)
		if o2.RefreshExpired() {
			fmt.Fprintf(out, "Refresh token: expired %s\n", refreshExpiry.Format(time.RFC3339))
		} else {
			fmt.Fprintf(out, "Refresh token: valid until %s\n", refreshExpiry.Format(time.RFC3339))
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
