// Package config loads the application configuration from a YAML file with
// environment-variable overrides. Destination secrets are environment-only
// and never written back to disk.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"assetmigration/pkg/locator"
	"assetmigration/pkg/models"
)

// Environment variables recognized on top of the YAML file. Secrets have no
// YAML equivalent.
const (
	EnvDestAccount   = "MIGRATE_DEST_ACCOUNT"
	EnvDestAPIKey    = "MIGRATE_DEST_API_KEY"
	EnvDestAPISecret = "MIGRATE_DEST_API_SECRET"
	EnvLocatorDSN    = "MIGRATE_LOCATOR_DSN"
	EnvStateDSN      = "MIGRATE_STATE_DSN"
)

// Config represents the application configuration.
type Config struct {
	LogLevel        string                  `yaml:"log_level"`
	Server          Server                  `yaml:"server"`
	Destination     Destination             `yaml:"destination"`
	Provider        Provider                `yaml:"provider"`
	RetiredAccounts []models.RetiredAccount `yaml:"retired_accounts"`
	Checkpoint      Checkpoint              `yaml:"checkpoint"`
	State           State                   `yaml:"state"`
	Locator         Locator                 `yaml:"locator"`
	Migration       Migration               `yaml:"migration"`
	Scheduler       Scheduler               `yaml:"scheduler"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Destination identifies the account all assets are migrated to. The API
// key and secret are populated from the environment only.
type Destination struct {
	AccountName string `yaml:"account_name"`
	APIKey      string `yaml:"-"`
	APISecret   string `yaml:"-"`
}

// Provider selects and parameterizes the destination provider client.
type Provider struct {
	// Kind is "mediacdn" or "s3compat".
	Kind           string `yaml:"kind"`
	BaseURL        string `yaml:"base_url"`
	EndpointURL    string `yaml:"endpoint_url"`
	Region         string `yaml:"region"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// Checkpoint selects the checkpoint medium.
type Checkpoint struct {
	// Backend is "file" or "sqlite".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// State selects where finished-job snapshots are persisted.
type State struct {
	// Backend is "file", "postgres" or "none".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	DSN     string `yaml:"-"`
}

// Locator configures asset discovery against the business database.
type Locator struct {
	DSN     string           `yaml:"-"`
	Sources []locator.Source `yaml:"sources"`
}

// Migration holds the processing-loop tunables.
type Migration struct {
	FlushEvery             int  `yaml:"flush_every"`
	ErrorRingSize          int  `yaml:"error_ring_size"`
	DownloadTimeoutSeconds int  `yaml:"download_timeout_seconds"`
	UploadTimeoutSeconds   int  `yaml:"upload_timeout_seconds"`
	DryRun                 bool `yaml:"dry_run"`
}

// Scheduler configures optional automatic resumption of interrupted jobs.
type Scheduler struct {
	Enabled          bool   `yaml:"enabled"`
	AutoContinueCron string `yaml:"auto_continue_cron"`
}

// Load reads the YAML file (optional), applies environment overrides and
// validates the result.
func Load(configFile string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Server: Server{
			Addr: ":8080",
		},
		Provider: Provider{
			Kind: "mediacdn",
		},
		Checkpoint: Checkpoint{
			Backend: "file",
			Path:    "./migration-checkpoint.json",
		},
		State: State{
			Backend: "file",
			Path:    "./migration-state.json",
		},
		Migration: Migration{
			FlushEvery:             10,
			ErrorRingSize:          20,
			DownloadTimeoutSeconds: 120,
			UploadTimeoutSeconds:   120,
		},
		Scheduler: Scheduler{
			AutoContinueCron: "*/15 * * * *",
		},
	}

	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv(EnvDestAccount); v != "" {
		cfg.Destination.AccountName = v
	}
	cfg.Destination.APIKey = os.Getenv(EnvDestAPIKey)
	cfg.Destination.APISecret = os.Getenv(EnvDestAPISecret)
	cfg.Locator.DSN = os.Getenv(EnvLocatorDSN)
	cfg.State.DSN = os.Getenv(EnvStateDSN)
}

func (c *Config) validate() error {
	switch c.Provider.Kind {
	case "mediacdn":
		if c.Provider.BaseURL == "" {
			return fmt.Errorf("provider.base_url is required for the mediacdn provider")
		}
	case "s3compat":
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}

	switch c.Checkpoint.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}
	if c.Checkpoint.Path == "" {
		return fmt.Errorf("checkpoint.path must not be empty")
	}

	switch c.State.Backend {
	case "file", "postgres", "none":
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}
	if c.State.Backend == "postgres" && c.State.DSN == "" {
		return fmt.Errorf("%s is required for the postgres state backend", EnvStateDSN)
	}

	if c.Migration.FlushEvery <= 0 {
		return fmt.Errorf("migration.flush_every must be positive")
	}
	if c.Migration.ErrorRingSize <= 0 {
		return fmt.Errorf("migration.error_ring_size must be positive")
	}

	for i, acct := range c.RetiredAccounts {
		if acct.AccountName == "" || acct.Host == "" {
			return fmt.Errorf("retired_accounts[%d] needs both account_name and host", i)
		}
	}

	return nil
}

// Credentials builds the destination credentials from configuration and
// environment.
func (c *Config) Credentials() models.DestinationCredentials {
	return models.DestinationCredentials{
		AccountName: c.Destination.AccountName,
		APIKey:      c.Destination.APIKey,
		APISecret:   c.Destination.APISecret,
	}
}

// Mask renders a credential safe for logs and API responses.
func Mask(cred string) string {
	if len(cred) < 8 {
		return "***"
	}
	return cred[:4] + "***" + cred[len(cred)-4:]
}

// Redacted returns a single-line summary of the destination suitable for
// startup logs.
func (c *Config) Redacted() string {
	return fmt.Sprintf("account=%s api_key=%s provider=%s",
		c.Destination.AccountName, Mask(c.Destination.APIKey), c.Provider.Kind)
}

// RetiredHostList returns the retired hosts, lowercased, for display.
func (c *Config) RetiredHostList() []string {
	hosts := make([]string, 0, len(c.RetiredAccounts))
	for _, acct := range c.RetiredAccounts {
		hosts = append(hosts, strings.ToLower(acct.Host))
	}
	return hosts
}
