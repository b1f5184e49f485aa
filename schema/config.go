package schema

import (
	"errors"
	"strings"
	"time"
)

// ServiceConfig defines the synchronized container names and polling limits.
type ServiceConfig struct {
	NotebookTitle string
	SectionTitle  string
	PageTitle     string
	PollInterval  time.Duration
	PollTimeout   time.Duration
}

const (
	// DefaultNotebookTitle names the notebook holding the synchronized section.
	DefaultNotebookTitle = "ToDoGraphDemo"
	// DefaultSectionTitle names the section holding the synchronized page.
	DefaultSectionTitle = "ToDoGraphDemo"
	// DefaultPageTitle names the synchronized page.
	DefaultPageTitle = "ToDoGraphDemo: My To Dos"
	// DefaultPollInterval is the delay between visibility checks after page creation.
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultPollTimeout bounds the wait for a created page to become visible.
	DefaultPollTimeout = 10 * time.Second
)

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	cfg.NotebookTitle = strings.TrimSpace(cfg.NotebookTitle)
	cfg.SectionTitle = strings.TrimSpace(cfg.SectionTitle)
	cfg.PageTitle = strings.TrimSpace(cfg.PageTitle)
	if cfg.NotebookTitle == "" {
		cfg.NotebookTitle = DefaultNotebookTitle
	}
	if cfg.SectionTitle == "" {
		cfg.SectionTitle = DefaultSectionTitle
	}
	if cfg.PageTitle == "" {
		cfg.PageTitle = DefaultPageTitle
	}
	if cfg.PollInterval < 0 || cfg.PollTimeout < 0 {
		return ServiceConfig{}, errors.New("poll interval and timeout must not be negative")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	return cfg, nil
}
