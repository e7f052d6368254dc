package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jonanatree/cardvault/cardservice"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd)

			app := cardservice.NewApp(logger, cfg)
			if err := app.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			logger.Info("signal received", slog.String("cause", context.Cause(ctx).Error()))

			app.Shutdown()
			return nil
		},
	}
	cmd.Flags().String("http-addr", "", "listen address (default localhost:9090)")
	cmd.Flags().Int("max-active", 0, "maximum active cards per user")
	cmd.Flags().Int("max-total", 0, "maximum cards per user")
	cmd.Flags().Int("max-expiry-years", 0, "how far in the future an expiration date may be")
	return cmd
}
