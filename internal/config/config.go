// Package config provides layered configuration loading for the CLI.
// The library itself never reads configuration; everything resolved
// here is passed to garth.Options explicitly.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the resolved CLI configuration.
// Precedence: flags (applied by the caller) > env > file > defaults.
type Config struct {
	Domain   string `yaml:"domain"`
	Email    string `yaml:"email"`
	TokenDir string `yaml:"token_dir"`
	Keyring  bool   `yaml:"keyring"`

	// Tokens is a pre-encoded credential pair. Env only — never read
	// from the config file, so secrets stay out of it.
	Tokens string `yaml:"-"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{Domain: "garmin.com"}
}

// Load resolves configuration from the given file (or the default
// location when path is empty) and the GARTH_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	if err := loadFromFile(cfg, path); err != nil {
		return nil, err
	}
	loadFromEnv(cfg)
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("GARTH_DOMAIN"); v != "" {
		cfg.Domain = v
	}
	if v := os.Getenv("GARTH_EMAIL"); v != "" {
		cfg.Email = v
	}
	if v := os.Getenv("GARTH_TOKEN_DIR"); v != "" {
		cfg.TokenDir = v
	}
	if v := os.Getenv("GARTH_TOKENS"); v != "" {
		cfg.Tokens = v
	}
	if v := os.Getenv("GARTH_KEYRING"); v != "" {
		cfg.Keyring = strings.ToLower(v) == "true" || v == "1"
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "garth", "config.yaml")
}
