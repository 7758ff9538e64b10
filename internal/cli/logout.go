package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	garth "github.com/garthlabs/garth-go"
)

func newLogoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			if cfg.Keyring {
				if err := (garth.Keyring{}).Delete(cfg.Domain); err != nil {
					return fmt.Errorf("removing keychain entry: %w", err)
				}
				fmt.Printf("Removed keychain tokens for %s\n", cfg.Domain)
				return nil
			}

			dir := tokenDir(cfg)
			removed := false
			for _, name := range []string{"oauth1_token.json", "oauth2_token.json"} {
				path := filepath.Join(dir, name)
				if err := os.Remove(path); err == nil {
					removed = true
				} else if !os.IsNotExist(err) {
					return err
				}
			}
			if !removed {
				fmt.Println("No stored tokens found")
				return nil
			}
			fmt.Printf("Removed tokens from %s\n", dir)
			return nil
		},
	}
}
