// Package server wires the HTTP API and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/openhydro/nhdquery/internal/config"
	"github.com/openhydro/nhdquery/internal/health"
	"github.com/openhydro/nhdquery/internal/middleware"
	"github.com/openhydro/nhdquery/internal/router"
)

// Run sets up the routes and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, log zerolog.Logger, q router.Querier, rs router.ComIDResolver) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover(log))
	r.Use(middleware.Logging(log))

	r.Get("/healthz", health.Liveness())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/query", router.HandleBoxQuery(log, q))
	r.Get("/query/ids", router.HandleIDQuery(log, q))
	r.Get("/resolve", router.HandleResolve(log, rs))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
