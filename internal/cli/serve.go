package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/metrics"
	"github.com/dukerupert/chorewheel/internal/scheduler"
	"github.com/dukerupert/chorewheel/internal/server"
)

type ServeOptions struct {
	*RootOptions
	Port string
	Cron string
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled materializer",
		Long: `Serve the JSON API, the websocket feed and /metrics.

Unless the cron spec is empty, occurrences for the next
CHOREWHEEL_MATERIALIZE_DAYS days are materialized at startup and on
every tick.

Example:
  chorewheel serve --port 9090 --cron "0 3 * * *"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Port, "port", "", "listen port (overrides CHOREWHEEL_PORT)")
	cmd.Flags().StringVar(&opts.Cron, "cron", "", "materializer schedule (overrides CHOREWHEEL_MATERIALIZE_CRON)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	if opts.Port != "" {
		cfg.Port = opts.Port
	}
	if cmd.Flags().Changed("cron") {
		cfg.MaterializeCron = opts.Cron
	}
	logger := opts.Logger

	db, err := opts.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(db, cfg, metrics.New(), logger)
	go srv.RunCleanup(ctx)

	if cfg.MaterializeCron != "" {
		sched, err := scheduler.New(srv.Materializer(), cfg.MaterializeCron, cfg.MaterializeDays, cfg.Location(), logger.With("component", "scheduler"))
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chorewheel listening", "addr", httpServer.Addr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
