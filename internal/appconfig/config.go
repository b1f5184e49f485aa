package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"pkt.systems/todosync/internal/authsession"
	"pkt.systems/todosync/internal/graph"
	"pkt.systems/todosync/internal/sessionstore"
	"pkt.systems/todosync/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int                `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string             `mapstructure:"state_dir" yaml:"state_dir"`
	HTTP          HTTPConfig         `mapstructure:"http" yaml:"http"`
	OAuth         OAuthConfig        `mapstructure:"oauth" yaml:"oauth"`
	Graph         GraphConfig        `mapstructure:"graph" yaml:"graph"`
	SessionStore  SessionStoreConfig `mapstructure:"session_store" yaml:"session_store"`
	Logging       LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string `mapstructure:"addr" yaml:"addr"`
	SessionCookie   string `mapstructure:"session_cookie" yaml:"session_cookie"`
	SessionTTLHours int    `mapstructure:"session_ttl_hours" yaml:"session_ttl_hours"`
	SessionFile     string `mapstructure:"session_file" yaml:"session_file"`
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	BasePath        string `mapstructure:"base_path" yaml:"base_path"`
}

// OAuthConfig configures the Microsoft identity platform app registration.
type OAuthConfig struct {
	ClientID        string   `mapstructure:"client_id" yaml:"client_id"`
	ClientSecretEnv string   `mapstructure:"client_secret_env" yaml:"client_secret_env"`
	Authority       string   `mapstructure:"authority" yaml:"authority"`
	RedirectURL     string   `mapstructure:"redirect_url" yaml:"redirect_url"`
	Scopes          []string `mapstructure:"scopes" yaml:"scopes"`
}

// GraphConfig configures the OneNote client and the synchronized page.
type GraphConfig struct {
	BaseURL               string `mapstructure:"base_url" yaml:"base_url"`
	NotebookTitle         string `mapstructure:"notebook_title" yaml:"notebook_title"`
	SectionTitle          string `mapstructure:"section_title" yaml:"section_title"`
	PageTitle             string `mapstructure:"page_title" yaml:"page_title"`
	PollIntervalMillis    int    `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	PollTimeoutSeconds    int    `mapstructure:"poll_timeout_seconds" yaml:"poll_timeout_seconds"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// SessionStoreConfig selects where token caches are kept.
type SessionStoreConfig struct {
	Backend      string `mapstructure:"backend" yaml:"backend"`
	Path         string `mapstructure:"path" yaml:"path"`
	Encrypt      bool   `mapstructure:"encrypt" yaml:"encrypt"`
	KeyStorePath string `mapstructure:"key_store_path" yaml:"key_store_path"`
}

// LoggingConfig controls the optional rotated log file.
type LoggingConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Level      string `mapstructure:"level" yaml:"level"`
}

// DefaultClientSecretEnv names the variable holding the client secret.
const DefaultClientSecretEnv = "TODOSYNC_CLIENT_SECRET"

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	stateDir := filepath.Join(home, ".todosync", "state")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      stateDir,
		HTTP: HTTPConfig{
			Addr:            ":27490",
			SessionCookie:   "todosync_session",
			SessionTTLHours: 720,
			SessionFile:     filepath.Join(stateDir, "sessions.json"),
			BaseURL:         "",
			BasePath:        "",
		},
		OAuth: OAuthConfig{
			ClientID:        "",
			ClientSecretEnv: DefaultClientSecretEnv,
			Authority:       authsession.DefaultAuthority,
			RedirectURL:     "http://localhost:27490/auth/callback",
			Scopes:          append([]string(nil), authsession.DefaultScopes...),
		},
		Graph: GraphConfig{
			BaseURL:               graph.DefaultBaseURL,
			NotebookTitle:         schema.DefaultNotebookTitle,
			SectionTitle:          schema.DefaultSectionTitle,
			PageTitle:             schema.DefaultPageTitle,
			PollIntervalMillis:    int(schema.DefaultPollInterval / time.Millisecond),
			PollTimeoutSeconds:    int(schema.DefaultPollTimeout / time.Second),
			RequestTimeoutSeconds: int(graph.DefaultTimeout / time.Second),
		},
		SessionStore: SessionStoreConfig{
			Backend:      sessionstore.BackendSQLite,
			Path:         filepath.Join(stateDir, "tokens.db"),
			Encrypt:      true,
			KeyStorePath: filepath.Join(stateDir, "keys.bundle"),
		},
		Logging: LoggingConfig{
			File:       "",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Level:      "info",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".todosync", "config.yaml"), nil
}

// ClientSecret reads the OAuth client secret from the configured variable.
func (c OAuthConfig) ClientSecret() string {
	name := strings.TrimSpace(c.ClientSecretEnv)
	if name == "" {
		name = DefaultClientSecretEnv
	}
	return os.Getenv(name)
}

// ClientConfig converts the OAuth section for the token acquirer.
func (c OAuthConfig) ClientConfig() authsession.ClientConfig {
	return authsession.ClientConfig{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret(),
		Authority:    c.Authority,
		RedirectURL:  c.RedirectURL,
		Scopes:       append([]string(nil), c.Scopes...),
	}
}

// ServiceConfig converts the graph section for the core service.
func (c GraphConfig) ServiceConfig() schema.ServiceConfig {
	return schema.ServiceConfig{
		NotebookTitle: c.NotebookTitle,
		SectionTitle:  c.SectionTitle,
		PageTitle:     c.PageTitle,
		PollInterval:  time.Duration(c.PollIntervalMillis) * time.Millisecond,
		PollTimeout:   time.Duration(c.PollTimeoutSeconds) * time.Second,
	}
}

// ClientConfig converts the graph section for the OneNote client.
func (c GraphConfig) ClientConfig() graph.Config {
	return graph.Config{
		BaseURL: c.BaseURL,
		Timeout: time.Duration(c.RequestTimeoutSeconds) * time.Second,
	}
}

// StoreConfig converts the session store section.
func (c SessionStoreConfig) StoreConfig() sessionstore.Config {
	return sessionstore.Config{
		Backend:      c.Backend,
		Path:         c.Path,
		Encrypt:      c.Encrypt,
		KeyStorePath: c.KeyStorePath,
	}
}
