package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/todosync/internal/appconfig"
	"pkt.systems/todosync/internal/sessionstore"
	"pkt.systems/todosync/internal/tokencache"
	"pkt.systems/todosync/schema"
)

func newTokensCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage persisted token caches",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.AddCommand(newTokensClearCmd(&cfgPath))
	return cmd
}

func newTokensClearCmd(cfgPath *string) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the token cache of an identity, forcing a new sign-in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger := pslog.Ctx(cmd.Context())
			store, err := sessionstore.Open(cfg.SessionStore.StoreConfig(), logger)
			if err != nil {
				return err
			}
			if closer, ok := store.(sessionstore.Closer); ok {
				defer func() { _ = closer.Close() }()
			}
			identity := schema.Identity(user)
			cache, err := tokencache.New(identity, store, tokencache.WithLogger(logger))
			if err != nil {
				return err
			}
			if err := cache.Clear(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleared tokens for %s\n", identity)
			return err
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "identity whose tokens are cleared")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
