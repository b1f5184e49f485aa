package appconfig

import (
	"testing"
	"time"
)

func TestDefaultConfigSyncTargets(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	svc := cfg.Graph.ServiceConfig()
	if svc.NotebookTitle != "ToDoGraphDemo" || svc.SectionTitle != "ToDoGraphDemo" || svc.PageTitle != "ToDoGraphDemo: My To Dos" {
		t.Fatalf("unexpected titles: %+v", svc)
	}
	if svc.PollInterval != 500*time.Millisecond || svc.PollTimeout != 10*time.Second {
		t.Fatalf("unexpected poll settings: %+v", svc)
	}
	if cfg.Graph.ClientConfig().Timeout != 30*time.Second {
		t.Fatalf("unexpected request timeout")
	}
}

func TestClientSecretFromEnv(t *testing.T) {
	t.Setenv("MY_SECRET", "s3cret")
	oauth := OAuthConfig{ClientID: "app", ClientSecretEnv: "MY_SECRET", RedirectURL: "http://localhost/cb"}
	if got := oauth.ClientConfig().ClientSecret; got != "s3cret" {
		t.Fatalf("unexpected secret %q", got)
	}
	t.Setenv(DefaultClientSecretEnv, "fallback")
	if got := (OAuthConfig{}).ClientSecret(); got != "fallback" {
		t.Fatalf("expected default env var, got %q", got)
	}
}
