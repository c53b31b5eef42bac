package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vitals/vitals/internal/config"
	"github.com/vitals/vitals/internal/domain/processor"
)

func consumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Pull readings from MQTT or Redis Streams and store Observations",
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, _ := cmd.Flags().GetString("transport")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.Transport = transport
			}
			logger := newLogger(cfg, os.Stdout)
			if err := cfg.ValidateConsumer(); err != nil {
				logger.Error().Err(err).Msg("invalid configuration")
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			backend, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			sub, err := openSubscriber(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer sub.Close()

			svc := processor.NewService(backend.store, cfg.StoreTimeout, logger)
			return processor.NewConsumer(svc, sub, cfg.Subscription(), logger.With().Str("transport", cfg.Transport).Logger()).Run(ctx)
		},
	}
	cmd.Flags().String("transport", "", "Override TRANSPORT (mqtt or redis)")
	return cmd
}
