package main

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"pkt.systems/pslog"
	"pkt.systems/todosync/internal/appconfig"
)

// newFileLogger tees structured logs to stderr and a rotated log file.
// A nil closer means no file is configured.
func newFileLogger(cfg appconfig.LoggingConfig, stderr io.Writer) (pslog.Logger, io.Closer, error) {
	path := strings.TrimSpace(cfg.File)
	if path == "" {
		return nil, nil, nil
	}
	opts := pslog.Options{Mode: pslog.ModeStructured, NoColor: true}
	if err := applyLevel(&opts, cfg.Level); err != nil {
		return nil, nil, err
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	return pslog.NewWithOptions(io.MultiWriter(stderr, file), opts), file, nil
}

func applyLevel(opts *pslog.Options, value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace":
		opts.MinLevel = pslog.TraceLevel
	case "debug":
		opts.MinLevel = pslog.DebugLevel
	case "", "info":
		opts.MinLevel = pslog.InfoLevel
	case "warn", "warning":
		opts.MinLevel = pslog.WarnLevel
	case "error":
		opts.MinLevel = pslog.ErrorLevel
	default:
		return fmt.Errorf("unsupported logging.level %q", value)
	}
	return nil
}
