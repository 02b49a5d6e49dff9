package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwbudde/evotimetable/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveMaxJobs int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Starts an HTTP server that runs timetable searches as background jobs.

Endpoints:
  POST   /api/v1/jobs              submit a problem (and optional config)
  GET    /api/v1/jobs              list jobs
  GET    /api/v1/jobs/{id}         job status
  GET    /api/v1/jobs/{id}/best    best timetable with fitness breakdown
  GET    /api/v1/jobs/{id}/stream  progress as server-sent events
  DELETE /api/v1/jobs/{id}         cancel at the next generation boundary
  GET    /metrics                  Prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().IntVar(&serveMaxJobs, "max-jobs", 4, "Maximum concurrently active jobs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}
	if cmd.Flags().Changed("max-jobs") {
		cfg.Server.MaxJobs = serveMaxJobs
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.NewServer(*cfg, st)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
