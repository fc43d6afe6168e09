// Package config loads reauth settings from a YAML file, an optional .env
// file and REAUTH_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/habedi/reauth/cache"
	"github.com/habedi/reauth/pkg/validation"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	ModeForm   = "form"
	ModeOAuth2 = "oauth2"

	// StoreNone disables the refresh slot.
	StoreNone = "none"

	envPrefix = "REAUTH_"
)

// Exchange describes the token endpoint used to refresh tokens.
type Exchange struct {
	Mode         string `yaml:"mode"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	MaxRetries   int    `yaml:"max_retries"`
}

// Config is the resolved configuration.
type Config struct {
	StateDir           string        `yaml:"state_dir"`
	DBPath             string        `yaml:"db_path"`
	AccessStore        string        `yaml:"access_store"`
	RefreshStore       string        `yaml:"refresh_store"`
	RefreshTokenExpiry time.Duration `yaml:"refresh_token_expiry"`
	LogLevel           string        `yaml:"log_level"`
	Exchange           Exchange      `yaml:"exchange"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	dir := defaultStateDir()
	return &Config{
		StateDir:     dir,
		DBPath:       filepath.Join(dir, "tokens.db"),
		AccessStore:  cache.KindSQLite,
		RefreshStore: cache.KindSQLite,
		LogLevel:     "disabled",
		Exchange: Exchange{
			Mode:       ModeForm,
			MaxRetries: 3,
		},
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reauth"
	}
	return filepath.Join(home, ".reauth")
}

// DefaultPath returns $REAUTH_CONFIG or ~/.reauth/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(envPrefix + "CONFIG"); p != "" {
		return p
	}
	return filepath.Join(defaultStateDir(), "config.yaml")
}

// Load reads the file at path (DefaultPath when empty) over the defaults and
// then applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error unmarshalling configuration file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("error reading configuration file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile applies $REAUTH_ENV_FILE, or ./.env if present. Variables
// already set in the environment win.
func loadEnvFile() error {
	path := os.Getenv(envPrefix + "ENV_FILE")
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	str("STATE_DIR", &c.StateDir)
	str("DB_PATH", &c.DBPath)
	str("ACCESS_STORE", &c.AccessStore)
	str("REFRESH_STORE", &c.RefreshStore)
	str("LOG_LEVEL", &c.LogLevel)
	str("EXCHANGE_MODE", &c.Exchange.Mode)
	str("TOKEN_URL", &c.Exchange.TokenURL)
	str("CLIENT_ID", &c.Exchange.ClientID)
	str("CLIENT_SECRET", &c.Exchange.ClientSecret)

	if v, ok := os.LookupEnv(envPrefix + "REFRESH_TOKEN_EXPIRY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sREFRESH_TOKEN_EXPIRY: %w", envPrefix, err)
		}
		c.RefreshTokenExpiry = d
	}
	if v, ok := os.LookupEnv(envPrefix + "MAX_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sMAX_RETRIES: %w", envPrefix, err)
		}
		c.Exchange.MaxRetries = n
	}
	return nil
}

// RefreshEnabled reports whether a refresh slot is configured.
func (c *Config) RefreshEnabled() bool {
	return !strings.EqualFold(c.RefreshStore, StoreNone)
}

// Validate checks the configuration for values the CLI cannot work with.
func (c *Config) Validate() error {
	if err := validation.ValidateChoice("access_store", c.AccessStore, cache.Kinds); err != nil {
		return err
	}
	if c.RefreshEnabled() {
		if err := validation.ValidateChoice("refresh_store", c.RefreshStore, cache.Kinds); err != nil {
			return err
		}
	}
	if err := validation.ValidateNonNegativeDuration("refresh_token_expiry", c.RefreshTokenExpiry); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return fmt.Errorf("invalid log_level: %w", err)
		}
	}
	if err := validation.ValidateChoice("exchange.mode", c.Exchange.Mode, []string{ModeForm, ModeOAuth2}); err != nil {
		return err
	}
	if c.Exchange.TokenURL != "" {
		if err := validation.ValidateURL("exchange.token_url", c.Exchange.TokenURL); err != nil {
			return err
		}
	}
	if c.Exchange.MaxRetries < 0 {
		return fmt.Errorf("exchange.max_retries cannot be negative, got %d", c.Exchange.MaxRetries)
	}
	return nil
}

// UsesSQLite reports whether any slot is stored in the database.
func (c *Config) UsesSQLite() bool {
	return strings.EqualFold(c.AccessStore, cache.KindSQLite) ||
		(c.RefreshEnabled() && strings.EqualFold(c.RefreshStore, cache.KindSQLite))
}
