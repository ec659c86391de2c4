package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/vocabdrill-backend/internal/app"
)

func watchCmd() *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail generated drills from the live stream as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Watch(ctx, log, history, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&history, "history", "n", 20, "print this many recent events before following")
	return cmd
}
