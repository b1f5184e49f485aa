package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/todosync"
	"pkt.systems/todosync/httpapi"
	"pkt.systems/todosync/internal/appconfig"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the todosync web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			fileLogger, closer, err := newFileLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if closer != nil {
				defer func() { _ = closer.Close() }()
				ctx = pslog.ContextWithLogger(ctx, fileLogger)
			}
			logger := pslog.Ctx(ctx)
			if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
				return err
			}

			serverCfg := todosync.ServerConfig{
				Service: cfg.Graph.ServiceConfig(),
				HTTP:    toHTTPConfig(cfg.HTTP),
				Graph:   cfg.Graph.ClientConfig(),
				OAuth:   cfg.OAuth.ClientConfig(),
				Store:   cfg.SessionStore.StoreConfig(),
			}
			server, err := todosync.New(serverCfg, todosync.ServerDeps{Logger: logger})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("http server listening", "addr", serverCfg.HTTP.Addr)
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func toHTTPConfig(cfg appconfig.HTTPConfig) httpapi.Config {
	return httpapi.Config{
		Addr:            cfg.Addr,
		SessionCookie:   cfg.SessionCookie,
		SessionTTLHours: cfg.SessionTTLHours,
		SessionPath:     cfg.SessionFile,
		BaseURL:         cfg.BaseURL,
		BasePath:        cfg.BasePath,
	}
}
