package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
)

// Config is the root configuration for treg, stored in ~/.treg/config.json.
// The file is JSONC: // and /* */ comments and trailing commas are allowed.
type Config struct {
	API     APIConfig     `json:"api"`
	Server  ServerConfig  `json:"server"`
	View    ViewConfig    `json:"view"`
	Outlook OutlookConfig `json:"outlook"`
}

// APIConfig describes the entry store backend the CLI talks to.
type APIConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// Token is a static bearer token. The keyring entry written by
	// `treg auth login` is used when this is empty.
	Token string `json:"token"`
	// TokenURL, ClientID and ClientSecret enable the OAuth2 client
	// credentials grant instead of a static token.
	TokenURL     string `json:"token_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// ServerConfig configures `treg serve`.
type ServerConfig struct {
	Listen      string        `json:"listen"`
	CORSOrigins []string      `json:"cors_origins"`
	Storage     StorageConfig `json:"storage"`
}

// StorageConfig selects the repository behind the server.
type StorageConfig struct {
	// Driver is one of json, sqlite or postgres.
	Driver string `json:"driver"`
	// DSN is a directory for json, a file path for sqlite and a connection
	// string for postgres. Empty means the default under ~/.treg.
	DSN string `json:"dsn"`
}

// ViewConfig holds presentation defaults.
type ViewConfig struct {
	PageSize int `json:"page_size"`
	// FormVariant is "description" or "comment".
	FormVariant string `json:"form_variant"`
}

// OutlookConfig holds Microsoft Graph / Outlook calendar import settings.
type OutlookConfig struct {
	// TenantID is the Azure AD tenant. Use "common" for personal/multi-tenant accounts.
	TenantID string `json:"tenant_id"`
	// ClientID is the Azure app (client) ID for the OAuth2 device code flow.
	ClientID        string `json:"client_id"`
	DefaultProject  string `json:"default_project"`
	DefaultCategory string `json:"default_category"`
	// Timezone is the IANA timezone for event times (e.g. "Europe/Berlin"). Empty = UTC.
	Timezone string `json:"timezone"`
}

const (
	DefaultBaseURL        = "http://localhost:3000"
	DefaultTimeoutSeconds = 15
	DefaultListen         = ":3000"
	DefaultDriver         = "json"
	DefaultPageSize       = 5
	DefaultFormVariant    = "description"

	// DefaultTenantID is the Microsoft "common" tenant.
	DefaultTenantID = "common"
	// DefaultClientID is the well-known public Azure CLI app ID, usable with
	// the device code flow without a client secret.
	DefaultClientID = "04b07795-8542-4c4a-95af-30b2c573d5ab"
	DefaultProject  = "Meetings"
	DefaultCategory = "Meeting"
)

// Environment variables that override the file.
const (
	EnvBaseURL       = "TREG_API_BASE_URL"
	EnvToken         = "TREG_API_TOKEN"
	EnvListen        = "TREG_LISTEN"
	EnvStorageDriver = "TREG_STORAGE_DRIVER"
	EnvStorageDSN    = "TREG_STORAGE_DSN"
)

// Default returns a Config pre-filled with the built-in defaults.
func Default() Config {
	var cfg Config
	cfg.fillDefaults()
	return cfg
}

func (c *Config) fillDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.Storage.Driver == "" {
		c.Server.Storage.Driver = DefaultDriver
	}
	if c.View.PageSize <= 0 {
		c.View.PageSize = DefaultPageSize
	}
	if c.View.FormVariant == "" {
		c.View.FormVariant = DefaultFormVariant
	}
	if c.Outlook.TenantID == "" {
		c.Outlook.TenantID = DefaultTenantID
	}
	if c.Outlook.ClientID == "" {
		c.Outlook.ClientID = DefaultClientID
	}
	if c.Outlook.DefaultProject == "" {
		c.Outlook.DefaultProject = DefaultProject
	}
	if c.Outlook.DefaultCategory == "" {
		c.Outlook.DefaultCategory = DefaultCategory
	}
}

// configTemplate is the annotated config written on first run.
const configTemplate = `// treg configuration – ~/.treg/config.json
//
// All settings are optional. Environment variables (and a .env file in the
// working directory) override the values below:
//   TREG_API_BASE_URL, TREG_API_TOKEN, TREG_LISTEN,
//   TREG_STORAGE_DRIVER, TREG_STORAGE_DSN
{
  // ── Entry store API ──────────────────────────────────────────────────────
  "api": {
    "base_url": "http://localhost:3000",
    "timeout_seconds": 15,

    // Static bearer token. Prefer "treg auth login", which keeps the token
    // in the OS keyring instead of this file.
    "token": "",

    // OAuth2 client credentials grant. Used instead of a static token when
    // token_url is set.
    "token_url": "",
    "client_id": "",
    "client_secret": ""
  },

  // ── treg serve ───────────────────────────────────────────────────────────
  "server": {
    "listen": ":3000",
    // Origins allowed to call the API from a browser, e.g. ["http://localhost:5173"].
    // "cors_origins": [],
    "storage": {
      // json (day files under ~/.treg/data), sqlite or postgres
      "driver": "json",
      "dsn": ""
    }
  },

  // ── Listing and forms ────────────────────────────────────────────────────
  "view": {
    "page_size": 5,
    // "description" or "comment": which text field a new entry requires
    "form_variant": "description"
  },

  // ── Microsoft Graph / Outlook calendar import ───────────────────────────
  "outlook": {
    // "common" for personal accounts and any organisation, or a tenant GUID.
    "tenant_id": "common",
    // The built-in value is the public Azure CLI app – no registration needed.
    "client_id": "04b07795-8542-4c4a-95af-30b2c573d5ab",
    "default_project": "Meetings",
    "default_category": "Meeting",
    // IANA timezone, e.g. "Europe/Berlin". Empty = UTC.
    "timezone": ""
  }
}
`

// Dir returns ~/.treg.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".treg"), nil
}

// Load reads ~/.treg/config.json, creating it with annotated defaults on first
// run, then applies .env and environment overrides.
func Load() (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Default(), err
	}
	return LoadFile(filepath.Join(dir, "config.json"))
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
		cfg := Default()
		applyEnv(&cfg)
		return cfg, nil
	}
	if err != nil {
		return Default(), fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}
	cfg.fillDefaults()
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv(EnvStorageDriver); v != "" {
		cfg.Server.Storage.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(EnvStorageDSN); v != "" {
		cfg.Server.Storage.DSN = v
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.Server.Storage.Driver {
	case "json", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q (want json, sqlite or postgres)", c.Server.Storage.Driver)
	}
	switch c.View.FormVariant {
	case "description", "comment":
	default:
		return fmt.Errorf("unknown form variant %q (want description or comment)", c.View.FormVariant)
	}
	if c.API.TimeoutSeconds > 3600 {
		return fmt.Errorf("api timeout of %d seconds is too long", c.API.TimeoutSeconds)
	}
	return nil
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
