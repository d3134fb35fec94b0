package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/unilocal/internal/housekeeping"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, storage, err := openStorage(opts)
			if err != nil {
				return err
			}
			defer closeStorage(storage, logger)

			if err := storage.Migrate(ctx); err != nil {
				logger.Error("failed to apply migrations", "error", err)
				return err
			}

			svc, err := newServices(cfg, storage, logger.Logger, time.Now)
			if err != nil {
				return err
			}

			runner, err := housekeeping.NewRunner(cfg.Maintenance.SessionPruneSpec, svc.auth.PruneExpiredSessions, logger.Logger)
			if err != nil {
				return err
			}

			server := &http.Server{
				Addr:              cfg.Server.Addr(),
				Handler:           svc.handler(logger.Logger, time.Now),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", server.Addr, err)
			}

			runner.Start()
			logger.Info("unilocal API listening", "addr", ln.Addr().String(), "locale", cfg.Places.Locale, "timezone", cfg.Places.Timezone)
			if err := serveUntilDone(ctx, server, ln, runner, cfg.Server.ShutdownTimeout, logger.Logger); err != nil {
				logger.Error("server encountered error", "error", err)
				return err
			}
			return nil
		},
	}
}

type jobStopper interface {
	Stop(ctx context.Context) error
}

// serveUntilDone serves on ln until ctx ends. It returns only after in-flight
// requests drained and jobs stopped, or timeout elapsed.
func serveUntilDone(ctx context.Context, server *http.Server, ln net.Listener, jobs jobStopper, timeout time.Duration, logger *slog.Logger) error {
	served := make(chan error, 1)
	go func() {
		served <- server.Serve(ln)
	}()

	select {
	case err := <-served:
		stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if stopErr := jobs.Stop(stopCtx); stopErr != nil {
			logger.Error("failed to stop housekeeping", "error", stopErr)
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop housekeeping: %w", err))
	}
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
