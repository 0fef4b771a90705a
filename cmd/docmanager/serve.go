package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/auth"
	"github.com/fyrsmithlabs/docmanager/internal/http"
	"github.com/fyrsmithlabs/docmanager/internal/logging"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the admin HTTP API and chat hook endpoint",
		Long: `Start the HTTP server. It serves:

  /health                 liveness
  /metrics                Prometheus metrics
  /documents/api/...      admin API, requires an admin token
  POST /hooks/message     prompt prefix and fast reply hooks

The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

// runServe blocks until ctx is cancelled or the listener fails.
func runServe(ctx context.Context, opts *rootOptions) error {
	a, err := bootstrap(ctx, opts, logStdout)
	if err != nil {
		return err
	}
	defer a.Close()
	return serve(ctx, a, nil)
}

// serve runs the HTTP server of a. ready, when set, receives the server
// once it is configured.
func serve(ctx context.Context, a *app, ready chan<- *http.Server) error {
	cfg := a.cfg
	logger := a.logger.Underlying()

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret.Bytes())
	if !verifier.Verifies() {
		logger.Warn("auth.jwt_secret is not set, token signatures are not verified")
	}

	srv, err := http.NewServer(a.docs, a.settings, verifier, logger, &http.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		DestructiveRate:  cfg.Server.DestructiveRate,
		DestructiveBurst: cfg.Server.DestructiveBurst,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	srv.MountHooks(a.hooks)

	if err := a.announce(ctx); err != nil {
		logger.Warn("after_bootstrap hooks failed", zap.Error(err))
	}

	logger.Info("starting docmanager",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()),
		logging.Secret("jwt_secret", cfg.Auth.JWTSecret))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	if ready != nil {
		ready <- srv
	}

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	logger.Info("server shutdown complete")
	return nil
}
