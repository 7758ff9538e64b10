package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	garth "github.com/garthlabs/garth-go"
)

func newTokensCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Export or import the encoded token pair",
	}
	cmd.AddCommand(newTokensExportCmd(flags), newTokensImportCmd(flags))
	return cmd
}

func newTokensExportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print stored tokens as a portable string",
		Long: "Prints the stored token pair as a single base64 string, suitable\n" +
			"for the GARTH_TOKENS environment variable on another machine.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			o1, o2, err := loadStoredTokens(cfg)
			if err != nil {
				return err
			}
			encoded, err := garth.DumpTokens(o1, o2)
			if err != nil {
				return err
			}
			fmt.Println(encoded)
			return nil
		},
	}
}

func newTokensImportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import [string]",
		Short: "Store a token pair from an encoded string (or stdin with -)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			var encoded string
			if len(args) == 1 && args[0] != "-" {
				encoded = args[0]
			} else {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				encoded = strings.TrimSpace(string(data))
			}

			o1, o2, err := garth.ParseTokens(encoded)
			if err != nil {
				return err
			}

			if cfg.Keyring {
				if err := (garth.Keyring{}).Save(o1.Domain, o1, o2); err != nil {
					return fmt.Errorf("saving tokens to keychain: %w", err)
				}
				fmt.Printf("Imported keychain tokens for %s\n", o1.Domain)
				return nil
			}

			dir := tokenDir(cfg)
			if err := garth.SaveTokens(dir, o1, o2); err != nil {
				return err
			}
			fmt.Printf("Imported tokens into %s\n", dir)
			return nil
		},
	}
}
