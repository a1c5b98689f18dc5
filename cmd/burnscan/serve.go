package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/burn-area-service/internal/adapter/http"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the analyses API with health and metrics endpoints",
		Long: `Start the HTTP service on HTTP_ADDR:

  GET  /healthz            liveness
  GET  /readyz             working and results directories usable
  GET  /metrics            Prometheus metrics
  POST /v1/analyses        start an analysis in the background (202 + id)
  GET  /v1/analyses        recent analyses
  GET  /v1/analyses/{id}   one analysis with its progress`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	return runServer(parent, a)
}

// runServer serves until the context ends or the listener fails. A listener
// failure is returned after shutdown.
func runServer(parent context.Context, a *app) error {
	logger := a.logger

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledger, err := a.openLedger(ctx)
	if err != nil {
		return err
	}
	defer ledger.Close()

	publisher := a.newPublisher()
	p := a.newPipeline(ledger, publisher)
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, p, p, ledger, logger)

	// Start HTTP server.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		logger.Error("http server error", "error", serveErr)
		stop()
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	if serveErr != nil {
		return fmt.Errorf("serve %s: %w", a.cfg.HTTPAddr, serveErr)
	}
	return nil
}
