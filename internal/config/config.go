// Package config loads linkharvest settings from defaults, an optional TOML
// file, and LINKHARVEST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "linkharvest.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LINKHARVEST_"

// MaxPageSize is the largest page the Gmail list call accepts.
const MaxPageSize = 500

// Config holds all runtime settings.
type Config struct {
	CredentialsFile string `toml:"credentials_file"`
	TokenFile       string `toml:"token_file"`
	OutputFile      string `toml:"output_file"`
	Label           string `toml:"label"`
	Pattern         string `toml:"pattern"` // empty selects the built-in tracking pattern
	PageSize        int    `toml:"page_size"`
	RPS             int    `toml:"rps"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		CredentialsFile: "credentials.json",
		TokenFile:       "token.json",
		OutputFile:      "urls.js",
		Label:           "udemy-notifications",
		RPS:             5,
	}
}

// Load applies the TOML file at path and then the environment on top of the
// defaults. An empty path reads DefaultFile if present; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	} else if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.CredentialsFile = expandPath(cfg.CredentialsFile)
	cfg.TokenFile = expandPath(cfg.TokenFile)
	cfg.OutputFile = expandPath(cfg.OutputFile)
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"credentials_file": c.CredentialsFile,
		"token_file":       c.TokenFile,
		"output_file":      c.OutputFile,
		"label":            c.Label,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	if c.PageSize < 0 || c.PageSize > MaxPageSize {
		return fmt.Errorf("page_size must be between 0 and %d, got %d", MaxPageSize, c.PageSize)
	}
	if c.Pattern != "" {
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return fmt.Errorf("pattern: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.CredentialsFile = getEnv("CREDENTIALS_FILE", c.CredentialsFile)
	c.TokenFile = getEnv("TOKEN_FILE", c.TokenFile)
	c.OutputFile = getEnv("OUTPUT_FILE", c.OutputFile)
	c.Label = getEnv("LABEL", c.Label)
	c.Pattern = getEnv("PATTERN", c.Pattern)

	var err error
	if c.PageSize, err = getEnvInt("PAGE_SIZE", c.PageSize); err != nil {
		return err
	}
	if c.RPS, err = getEnvInt("RPS", c.RPS); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return n, nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
