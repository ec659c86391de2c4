package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/vocabdrill-backend/internal/app"
)

func etlCmd() *cobra.Command {
	var opts app.ETLOptions
	cmd := &cobra.Command{
		Use:   "etl",
		Short: "Enrich catalog words with definitions, tiers and embeddings",
		Long: `Runs the bulk enrichment lane over every vocab row that has not been
enriched yet. Without --continuous the run ends when the backlog drains or the
circuit breaker trips; with it the process keeps polling and sleeps through
cooldowns until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stats, err := app.RunETL(ctx, log, opts)
			log.Info("ETL finished",
				"batches", stats.Batches,
				"fetched", stats.Fetched,
				"succeeded", stats.Succeeded,
				"failed", stats.Failed,
				"trips", stats.Trips,
			)
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.Continuous, "continuous", false, "keep polling after the backlog drains")
	cmd.Flags().StringVar(&opts.Tier, "tier", "", "tier preset: free or paid (default: ETL_TIER)")
	cmd.Flags().IntVar(&opts.MaxBatches, "max-batches", 0, "stop after this many batches (0 = unlimited)")
	return cmd
}
