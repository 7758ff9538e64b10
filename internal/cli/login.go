package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	garth "github.com/garthlabs/garth-go"
	"github.com/garthlabs/garth-go/internal/config"
)

func newLoginCmd(flags *globalFlags) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against Garmin Connect and store tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if email != "" {
				cfg.Email = email
			}
			return runLogin(cmd.Context(), cfg, flags.Verbose)
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")

	return cmd
}

func runLogin(ctx context.Context, cfg *config.Config, verbose bool) error {
	email := cfg.Email
	if email == "" {
		prompt := promptui.Prompt{Label: "Email"}
		v, err := prompt.Run()
		if err != nil {
			return err
		}
		email = strings.TrimSpace(v)
	}

	password, err := (&promptui.Prompt{Label: "Password", Mask: '*'}).Run()
	if err != nil {
		return err
	}

	opts := garth.Options{
		Email:     email,
		Password:  password,
		Domain:    cfg.Domain,
		TokenDir:  cfg.TokenDir,
		MFAPrompt: promptMFACode,
		Verbose:   verbose,
	}
	if cfg.Keyring {
		// Tokens go to the keychain below; skip the plaintext files.
		opts.NoPersist = true
	}

	client, err := garth.NewClient(ctx, opts)
	if err != nil {
		return err
	}

	if cfg.Keyring {
		o1, o2 := client.Session().Tokens()
		if err := (garth.Keyring{}).Save(cfg.Domain, o1, o2); err != nil {
			return fmt.Errorf("saving tokens to keychain: %w", err)
		}
	}

	name := client.DisplayName()
	if name == "" {
		name = email
	}
	fmt.Printf("Logged in to %s as %s\n", cfg.Domain, name)
	return nil
}

// promptMFACode asks for the one-time code interactively. Injected into
// the client; the library itself never prompts.
func promptMFACode(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	code, err := (&promptui.Prompt{Label: "MFA code"}).Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}
