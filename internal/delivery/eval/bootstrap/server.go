// Package bootstrap wires configuration into the evaluation service and runs
// the protocol executor.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finbench/internal/config"
	"finbench/internal/delivery/server"
	"finbench/internal/logging"
)

// RunEvalServer loads configuration from configPath (or the default search
// locations) and serves until SIGINT or SIGTERM.
func RunEvalServer(configPath string) error {
	cfg, meta, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if meta.File != "" {
		fmt.Fprintf(os.Stderr, "[eval-server] using config %s\n", meta.File)
	}
	return Serve(ctx, cfg)
}

// Serve builds the dependencies and runs the HTTP server until ctx is done.
func Serve(ctx context.Context, cfg config.Config, opts ...BuildOption) error {
	deps, err := Build(cfg, opts...)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())
	logger := logging.NewComponentLogger("EvalServer")

	srv := server.New(deps.Orchestrator, server.Config{
		PublicURL:      cfg.Server.PublicURL(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	},
		server.WithLogger(logging.NewComponentLogger("ProtocolExecutor")),
		server.WithMetrics(deps.Metrics),
		server.WithTracer(deps.Tracer),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s (card url %s)", httpServer.Addr, srv.Card().URL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}
