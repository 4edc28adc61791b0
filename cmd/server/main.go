// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

// Command server runs the Callejero routing service: the HTTP and
// websocket API, the routing engine, and the background janitors, all
// under one supervisor tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callejero-app/callejero/internal/api"
	"github.com/callejero-app/callejero/internal/cache"
	"github.com/callejero-app/callejero/internal/config"
	"github.com/callejero-app/callejero/internal/crowd"
	"github.com/callejero-app/callejero/internal/graph"
	"github.com/callejero-app/callejero/internal/logging"
	"github.com/callejero-app/callejero/internal/routing"
	"github.com/callejero-app/callejero/internal/session"
	"github.com/callejero-app/callejero/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("addr", cfg.Addr()).
		Str("segments_file", cfg.Routing.SegmentsFile).
		Msg("Starting Callejero server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := loadGraph(ctx, cfg)
	if err != nil {
		return err
	}

	results := cache.NewResultCache(cfg.Routing.CacheTTL)
	crowdStore := crowd.NewStore()

	engine, err := routing.NewEngine(store, routing.Dependencies{
		Restrictions: &routing.StaticSources{},
		Occupations:  &routing.StaticSources{},
		CrowdSignals: crowdStore,
		Targets:      routing.NewLandmarkResolver(),
		Results:      results,
	}, routing.Config{
		DefaultMaxWalkKm:      cfg.Routing.MaxWalkKm,
		DefaultMaxDetourRatio: cfg.Routing.MaxDetourRatio,
		ETAFloorSeconds:       cfg.Routing.ETAFloorSeconds,
	})
	if err != nil {
		return fmt.Errorf("building routing engine: %w", err)
	}

	registry := session.NewRegistry(cfg.Session.RouteRetention)

	handler := api.NewHandler(engine, registry, crowdStore, cfg)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)

	tree.AddMaintenanceService(results)
	tree.AddMaintenanceService(crowd.NewAggregator(crowdStore, cfg.Crowd.PruneInterval))
	tree.AddMaintenanceService(registry)
	tree.AddAPIService(supervisor.NewHTTPServerService(server, treeCfg.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", cfg.Addr()).Msg("Server listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("supervisor stopped: %w", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("supervisor stopped: %w", err)
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("Server stopped gracefully")
	return nil
}

// loadGraph builds the initial graph snapshot, from the configured
// segments file when present, otherwise the built-in landmark fallback.
func loadGraph(ctx context.Context, cfg *config.Config) (*graph.Store, error) {
	source := &routing.FileSegmentSource{Path: cfg.Routing.SegmentsFile}
	segments, err := source.LoadWalkableSegments(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading segments from %s: %w", cfg.Routing.SegmentsFile, err)
	}
	return graph.NewStore(segments), nil
}
