package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":27490" || cfg.SessionStore.Backend != "sqlite" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TODOSYNC_TEST_DIR", "/data")
	path := writeConfig(t, `
config_version: 1
oauth:
  client_id: app-123
  scopes: [Notes.ReadWrite]
graph:
  page_title: Groceries
  poll_interval_ms: 250
session_store:
  backend: file
  path: ${TODOSYNC_TEST_DIR}/tokens
  encrypt: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OAuth.ClientID != "app-123" || len(cfg.OAuth.Scopes) != 1 {
		t.Fatalf("unexpected oauth: %+v", cfg.OAuth)
	}
	if cfg.Graph.PageTitle != "Groceries" || cfg.Graph.PollIntervalMillis != 250 || cfg.Graph.NotebookTitle != "ToDoGraphDemo" {
		t.Fatalf("unexpected graph: %+v", cfg.Graph)
	}
	if cfg.SessionStore.Path != "/data/tokens" {
		t.Fatalf("expected env expansion, got %q", cfg.SessionStore.Path)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 3
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":9000"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsUnsupportedBackend(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
session_store:
  backend: redis
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported session_store.backend") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestLoadRequiresKeyStoreForEncryption(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
session_store:
  backend: memory
  encrypt: true
  key_store_path: ""
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "key_store_path") {
		t.Fatalf("expected key store error, got %v", err)
	}
}

func TestLoadRejectsInvalidHTTPBaseURL(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
http:
  base_url: example.com
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "http.base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") {
		t.Fatalf("expected UID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load written default: %v", err)
	}
	if cfg.Graph.PageTitle != "ToDoGraphDemo: My To Dos" {
		t.Fatalf("unexpected page title %q", cfg.Graph.PageTitle)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
