package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/todosync/internal/sessionstore"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TODOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.session_cookie", cfg.HTTP.SessionCookie)
	v.SetDefault("http.session_ttl_hours", cfg.HTTP.SessionTTLHours)
	v.SetDefault("http.session_file", cfg.HTTP.SessionFile)
	v.SetDefault("http.base_url", cfg.HTTP.BaseURL)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("oauth.client_id", cfg.OAuth.ClientID)
	v.SetDefault("oauth.client_secret_env", cfg.OAuth.ClientSecretEnv)
	v.SetDefault("oauth.authority", cfg.OAuth.Authority)
	v.SetDefault("oauth.redirect_url", cfg.OAuth.RedirectURL)
	v.SetDefault("oauth.scopes", cfg.OAuth.Scopes)
	v.SetDefault("graph.base_url", cfg.Graph.BaseURL)
	v.SetDefault("graph.notebook_title", cfg.Graph.NotebookTitle)
	v.SetDefault("graph.section_title", cfg.Graph.SectionTitle)
	v.SetDefault("graph.page_title", cfg.Graph.PageTitle)
	v.SetDefault("graph.poll_interval_ms", cfg.Graph.PollIntervalMillis)
	v.SetDefault("graph.poll_timeout_seconds", cfg.Graph.PollTimeoutSeconds)
	v.SetDefault("graph.request_timeout_seconds", cfg.Graph.RequestTimeoutSeconds)
	v.SetDefault("session_store.backend", cfg.SessionStore.Backend)
	v.SetDefault("session_store.path", cfg.SessionStore.Path)
	v.SetDefault("session_store.encrypt", cfg.SessionStore.Encrypt)
	v.SetDefault("session_store.key_store_path", cfg.SessionStore.KeyStorePath)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", cfg.Logging.MaxAgeDays)
	v.SetDefault("logging.level", cfg.Logging.Level)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return Config{}, err
	}
	if err := validateSessionStoreConfig(cfg.SessionStore); err != nil {
		return Config{}, err
	}
	if err := validateGraphConfig(cfg.Graph); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("http.base_url must include scheme and host (e.g. https://example.com)")
		}
	}
	basePath := strings.TrimSpace(cfg.BasePath)
	if basePath != "" {
		if strings.Contains(basePath, "://") {
			return fmt.Errorf("http.base_path must be a path prefix, not a URL")
		}
		if strings.ContainsAny(basePath, "?#") {
			return fmt.Errorf("http.base_path must not include query or fragment")
		}
	}
	return nil
}

func validateSessionStoreConfig(cfg SessionStoreConfig) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case sessionstore.BackendMemory:
	case sessionstore.BackendFile, sessionstore.BackendSQLite:
		if strings.TrimSpace(cfg.Path) == "" {
			return fmt.Errorf("session_store.path is required for backend %q", cfg.Backend)
		}
	default:
		return fmt.Errorf("unsupported session_store.backend %q", cfg.Backend)
	}
	if cfg.Encrypt && strings.TrimSpace(cfg.KeyStorePath) == "" {
		return fmt.Errorf("session_store.key_store_path is required when encrypt is enabled")
	}
	return nil
}

func validateGraphConfig(cfg GraphConfig) error {
	if cfg.PollIntervalMillis < 0 || cfg.PollTimeoutSeconds < 0 || cfg.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("graph timeouts must not be negative")
	}
	if strings.TrimSpace(cfg.PageTitle) == "" {
		return fmt.Errorf("graph.page_title is required")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.HTTP.SessionFile = expandEnv(cfg.HTTP.SessionFile)
	cfg.OAuth.RedirectURL = expandEnv(cfg.OAuth.RedirectURL)
	cfg.SessionStore.Path = expandEnv(cfg.SessionStore.Path)
	cfg.SessionStore.KeyStorePath = expandEnv(cfg.SessionStore.KeyStorePath)
	cfg.Logging.File = expandEnv(cfg.Logging.File)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "HOME":
		if home, err := os.UserHomeDir(); err == nil {
			return home, true
		}
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
