package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/vocabdrill-backend/internal/app"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, job worker pool and generation scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Addr = addr
			}
			a, err := app.New(log, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.Start(); err != nil {
				a.Close(context.Background())
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- a.Run() }()

			select {
			case <-ctx.Done():
				log.Info("Shutdown signal received")
			case err = <-errCh:
				if err != nil {
					log.Error("HTTP server stopped", "error", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			a.Close(shutdownCtx)
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: HTTP_ADDR or :8080)")
	return cmd
}
