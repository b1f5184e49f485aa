package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/todosync/internal/appconfig"
	"pkt.systems/todosync/internal/sessionstore"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "config": false, "tokens": false, "version": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing command %q", name)
		}
	}
}

func TestConfigInitWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	out, err := runRoot(t, "config", "init", "-c", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("expected path in output, got %q", out)
	}
	if _, err := appconfig.Load(path); err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if _, err := runRoot(t, "config", "init", "-c", path); err == nil {
		t.Fatalf("expected existing config to be kept without --force")
	}
	if _, err := runRoot(t, "config", "init", "-c", path, "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
}

func TestTokensClearRemovesCache(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "tokens")
	path := filepath.Join(dir, "config.yaml")
	content := "config_version: 1\nsession_store:\n  backend: file\n  path: " + storeDir + "\n  encrypt: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	store, err := sessionstore.NewFile(storeDir, nil)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	ctx := context.Background()
	if err := store.Set(ctx, "alice_TokenCache", []byte(`{"tokens":1}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := runRoot(t, "tokens", "clear", "--user", "alice", "-c", path)
	if err != nil {
		t.Fatalf("tokens clear: %v", err)
	}
	if !strings.Contains(out, "cleared tokens for alice") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, ok, err := store.Get(ctx, "alice_TokenCache"); err != nil || ok {
		t.Fatalf("expected cache removed, ok=%v err=%v", ok, err)
	}
}

func TestTokensClearRejectsInvalidIdentity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "config_version: 1\nsession_store:\n  backend: memory\n  encrypt: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := runRoot(t, "tokens", "clear", "--user", "bad identity", "-c", path); err == nil {
		t.Fatalf("expected invalid identity to fail")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runRoot(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "todosync") {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestApplyLevel(t *testing.T) {
	for _, value := range []string{"", "trace", "DEBUG", "info", "warn", "error"} {
		opts := pslog.Options{}
		if err := applyLevel(&opts, value); err != nil {
			t.Fatalf("level %q: %v", value, err)
		}
	}
	opts := pslog.Options{}
	if err := applyLevel(&opts, "loud"); err == nil {
		t.Fatalf("expected unsupported level error")
	}
}

func TestFileLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todosync.log")
	var stderr bytes.Buffer
	logger, closer, err := newFileLogger(appconfig.LoggingConfig{File: path, MaxSizeMB: 1, Level: "info"}, &stderr)
	if err != nil {
		t.Fatalf("file logger: %v", err)
	}
	logger.Info("hello file")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello file") || !strings.Contains(stderr.String(), "hello file") {
		t.Fatalf("expected message in both sinks, file=%q stderr=%q", data, stderr.String())
	}
}

func TestFileLoggerDisabledWithoutPath(t *testing.T) {
	logger, closer, err := newFileLogger(appconfig.LoggingConfig{}, &bytes.Buffer{})
	if err != nil || logger != nil || closer != nil {
		t.Fatalf("expected no file logger, got %v %v %v", logger, closer, err)
	}
}
