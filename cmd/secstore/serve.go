package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mwantia/secstore/config"
	"github.com/mwantia/secstore/metrics"
	"github.com/mwantia/secstore/restore/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Watch for restore signals and serve health and metrics over HTTP",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	logger := a.cfg.Log.NewLogger("secstore")

	registry := prometheus.NewRegistry()
	engine, closer, err := a.openEngine(ctx, logger, metrics.NewMetrics(registry), false)
	if err != nil {
		return err
	}
	defer closer()

	if err := engine.ReInitSecStorage(ctx); err != nil {
		logger.Warn("Initial rebuild failed, retrying on first use: %v", err)
	}

	httpServer := &http.Server{
		Addr:              a.cfg.HTTP.Address,
		Handler:           newRouter(engine, registry, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if marker := a.cfg.Restore.Marker; marker != "" {
		fw := watch.NewFileWatcher(marker, engine, logger.Named("watch"))
		fw.RemoveMarker = a.cfg.Restore.RemoveMarker
		if a.cfg.Restore.Debounce > 0 {
			fw.Debounce = a.cfg.Restore.Debounce
		}

		g.Go(func() error {
			return fw.Run(gCtx)
		})
	}

	if key := a.cfg.Restore.ConsulKey; key != "" {
		client, err := config.NewConsulClient(&a.cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to create consul client: %w", err)
		}

		cw := watch.NewConsulWatcher(client, key, engine, logger.Named("watch"))
		g.Go(func() error {
			return cw.Run(gCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server on %s", a.cfg.HTTP.Address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}
