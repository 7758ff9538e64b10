// Package cli implements the garth command tree.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	garth "github.com/garthlabs/garth-go"
	"github.com/garthlabs/garth-go/internal/config"
	"github.com/garthlabs/garth-go/internal/version"
)

type globalFlags struct {
	Domain     string
	TokenDir   string
	ConfigPath string
	Keyring    bool
	Verbose    bool
}

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:           "garth",
		Short:         "Command-line client for Garmin Connect",
		Long:          "garth authenticates against Garmin Connect SSO and calls its REST API.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate(version.Full() + "\n")

	cmd.PersistentFlags().StringVar(&flags.Domain, "domain", "", "API domain (garmin.com or garmin.cn)")
	cmd.PersistentFlags().StringVar(&flags.TokenDir, "token-dir", "", "Token directory (default ~/.garth)")
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "Config file (default ~/.config/garth/config.yaml)")
	cmd.PersistentFlags().BoolVar(&flags.Keyring, "keyring", false, "Store tokens in the system keychain")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Verbose request tracing")

	cmd.AddCommand(
		newLoginCmd(&flags),
		newLogoutCmd(&flags),
		newStatusCmd(&flags),
		newTokensCmd(&flags),
		newAPICmd(&flags),
	)

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var e *garth.Error
	if !errors.As(err, &e) {
		return 1
	}
	switch e.Code {
	case garth.CodeUsage:
		return 1
	case garth.CodeNotFound:
		return 2
	case garth.CodeAuth, garth.CodeLogin, garth.CodeTokenExpired, garth.CodeCredentialsNotFound:
		return 3
	case garth.CodeRateLimit:
		return 5
	case garth.CodeNetwork:
		return 6
	default:
		return 7
	}
}

// loadConfig resolves the config file, env vars, and flag overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if flags.Domain != "" {
		cfg.Domain = flags.Domain
	}
	if flags.TokenDir != "" {
		cfg.TokenDir = flags.TokenDir
	}
	if flags.Keyring {
		cfg.Keyring = true
	}
	return cfg, nil
}

// tokenDir resolves the effective token directory, mirroring the
// library default.
func tokenDir(cfg *config.Config) string {
	if cfg.TokenDir != "" {
		return cfg.TokenDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, garth.DefaultTokenDirName)
}

// loadStoredTokens resolves tokens without a network call: env string,
// then keyring, then token directory.
func loadStoredTokens(cfg *config.Config) (*garth.OAuth1Token, *garth.OAuth2Token, error) {
	if cfg.Tokens != "" {
		return garth.ParseTokens(cfg.Tokens)
	}
	if cfg.Keyring {
		return garth.Keyring{}.Load(cfg.Domain)
	}
	return garth.LoadTokens(tokenDir(cfg))
}
