package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitals/vitals/internal/config"
	"github.com/vitals/vitals/internal/domain/simulator"
	"github.com/vitals/vitals/internal/domain/vitals"
)

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Publish synthetic patient vital signs",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			continuous, _ := cmd.Flags().GetBool("continuous")
			interval, _ := cmd.Flags().GetFloat64("interval")
			seed, _ := cmd.Flags().GetInt64("seed")
			transport, _ := cmd.Flags().GetString("transport")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.Transport = transport
			}
			if err := cfg.ValidateSimulator(); err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			// a second signal falls through to the default handler
			context.AfterFunc(ctx, stop)

			pub, target, err := openPublisher(ctx, cfg)
			if err != nil {
				return err
			}
			defer pub.Close()

			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			gen := vitals.NewGenerator(vitals.WithRand(rand.New(rand.NewSource(seed))))
			sim := simulator.New(pub, gen, rand.New(rand.NewSource(seed+1)), target, cmd.OutOrStdout(), logger)

			out := cmd.OutOrStdout()
			sent, err := sim.Run(ctx, simulator.Options{
				Count:      count,
				Continuous: continuous,
				Interval:   secondsToDuration(interval),
			})
			if ctx.Err() != nil {
				fmt.Fprintln(out, "\n\nSimulator stopped.")
			}
			fmt.Fprintf(out, "\nTotal readings sent: %d\n", sent)
			return err
		},
	}
	cmd.Flags().Int("count", simulator.DefaultCount, "Number of readings to send")
	cmd.Flags().Bool("continuous", false, "Run continuously (Ctrl+C to stop)")
	cmd.Flags().Float64("interval", simulator.DefaultInterval.Seconds(), "Seconds between batches")
	cmd.Flags().Int64("seed", 0, "Random seed for reproducible runs (0 = time based)")
	cmd.Flags().String("transport", "", "Override TRANSPORT (mqtt, redis or push)")
	return cmd
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
