// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

// Package main is the entry point for the Gazetteer server.
//
// Gazetteer aggregates African diaspora places of worship, caterers,
// real estate services, restaurants, and events from external providers
// into durable named caches, and serves them over a REST API with
// proximity filtering.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered Koanf v2 loading (defaults, YAML, env)
//  2. Store: file-per-domain JSON blobs with an in-memory hot layer
//  3. Provider clients: Google Places/Geocoding behind a circuit
//     breaker, Ticketmaster Discovery with bounded retries
//  4. Aggregation engine: city-by-keyword sweeps with dedupe and
//     batched review enrichment
//  5. Proximity filter: spatial-hash nearby queries with live fallback
//  6. Refresh scheduler: daily event and monthly place sweeps
//  7. HTTP server: chi router under a suture supervisor tree
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config.yaml, built-in
// defaults. Providers need their API keys:
//
//	export GOOGLE_API_KEY=your-maps-key
//	export TICKETMASTER_API_KEY=your-discovery-key
//	./gazetteer
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the HTTP server
// drains in-flight requests (10s timeout) and the scheduler stops
// between runs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/gazetteer/internal/aggregate"
	"github.com/tomtom215/gazetteer/internal/api"
	"github.com/tomtom215/gazetteer/internal/config"
	"github.com/tomtom215/gazetteer/internal/events"
	"github.com/tomtom215/gazetteer/internal/logging"
	"github.com/tomtom215/gazetteer/internal/places"
	"github.com/tomtom215/gazetteer/internal/proximity"
	"github.com/tomtom215/gazetteer/internal/scheduler"
	"github.com/tomtom215/gazetteer/internal/store"
	"github.com/tomtom215/gazetteer/internal/supervisor"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("cache_dir", cfg.Cache.Dir).
		Bool("google", cfg.Google.Enabled).
		Bool("ticketmaster", cfg.Ticketmaster.Enabled).
		Msg("Starting Gazetteer")

	st := store.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.HotTTL)

	googleClient := places.NewClient(cfg.Google)
	eventsClient := events.NewClient(cfg.Ticketmaster)

	engine := aggregate.New(googleClient, googleClient, googleClient, eventsClient, st, cfg)
	st.Preload(engine.Domains()...)

	sweeps := make(map[string]proximity.DomainSweep)
	for name, dc := range aggregate.DomainConfigs(cfg.Aggregate) {
		sweeps[name] = proximity.DomainSweep{Type: dc.Type, Keywords: dc.Keywords}
	}
	nearby := proximity.NewFilter(st, googleClient, googleClient, cfg.Proximity, sweeps)

	refresher, err := scheduler.New(engine, cfg.Scheduler)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create refresh scheduler")
	}

	handler := api.NewHandler(engine, nearby, cfg, version)
	router := api.NewRouter(handler, cfg.Server)
	server := api.NewServer(router, cfg.Server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(server)
	tree.AddJobService(refresher)

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Supervisor tree starting")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Fatal().Err(err).Msg("Supervisor tree exited")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("Gazetteer stopped")
}
