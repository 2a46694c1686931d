// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

// Package aggregate implements the aggregation engine: a city-by-keyword
// search grid per domain, deduplication by place id, batched detail
// enrichment, and a single cache write per run. One failed task never
// fails a run; it just contributes nothing.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/gazetteer/internal/config"
	"github.com/tomtom215/gazetteer/internal/events"
	"github.com/tomtom215/gazetteer/internal/logging"
	"github.com/tomtom215/gazetteer/internal/metrics"
	"github.com/tomtom215/gazetteer/internal/models"
	"github.com/tomtom215/gazetteer/internal/places"
	"github.com/tomtom215/gazetteer/internal/store"
)

var (
	// ErrUnknownDomain indicates a domain name outside the configured set.
	ErrUnknownDomain = errors.New("unknown domain")

	// ErrNoPlaces indicates an aggregation or browse produced nothing.
	ErrNoPlaces = errors.New("no places found")

	// ErrCityNotSupported indicates a restaurant query for a city
	// outside the seeded list.
	ErrCityNotSupported = errors.New("city not supported")
)

// SearchResult is the payload of an interactive place search.
type SearchResult struct {
	Count  int                  `json:"count"`
	Places []models.PlaceRecord `json:"places"`
}

// Engine runs aggregation sweeps and serves cache-first reads.
type Engine struct {
	searcher places.Searcher
	enricher places.Enricher
	geocoder places.Geocoder
	events   events.Provider
	store    *store.Store
	domains  map[string]DomainConfig
	google   config.GoogleConfig
	agg      config.AggregateConfig
	log      zerolog.Logger
}

// New creates the aggregation engine.
func New(searcher places.Searcher, enricher places.Enricher, geocoder places.Geocoder,
	eventsProvider events.Provider, st *store.Store, cfg *config.Config) *Engine {
	return &Engine{
		searcher: searcher,
		enricher: enricher,
		geocoder: geocoder,
		events:   eventsProvider,
		store:    st,
		domains:  DomainConfigs(cfg.Aggregate),
		google:   cfg.Google,
		agg:      cfg.Aggregate,
		log:      logging.WithComponent("aggregate"),
	}
}

// Domains returns the names of all refreshable domains, including events.
func (e *Engine) Domains() []string {
	names := make([]string, 0, len(e.domains)+1)
	for name := range e.domains {
		names = append(names, name)
	}
	names = append(names, DomainEvents)
	return names
}

// IsDomain reports whether name is a refreshable domain.
func (e *Engine) IsDomain(name string) bool {
	if name == DomainEvents {
		return true
	}
	_, ok := e.domains[name]
	return ok
}

// Refresh runs a full aggregation for the domain and persists the
// result, replacing the previous blob. Returns the record count.
func (e *Engine) Refresh(ctx context.Context, domain string) (int, error) {
	if domain == DomainEvents {
		records, err := e.refreshEvents(ctx)
		return len(records), err
	}

	records, err := e.Aggregate(ctx, domain)
	return len(records), err
}

// Aggregate runs the search grid for a place domain, enriches the
// deduplicated set, persists it, and returns it.
func (e *Engine) Aggregate(ctx context.Context, domain string) ([]models.PlaceRecord, error) {
	dc, ok := e.domains[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}

	start := time.Now()
	e.log.Info().Str("domain", domain).
		Int("cities", len(dc.Cities)).
		Int("keywords", len(dc.Keywords)).
		Msg("Aggregation run started")

	merged := make(map[string]int)
	var records []models.PlaceRecord
	taskErrors := 0

grid:
	for _, city := range dc.Cities {
		for _, keyword := range dc.Keywords {
			if ctx.Err() != nil {
				break grid
			}
			if dc.Cap > 0 && len(records) >= dc.Cap {
				break grid
			}

			remaining := 0
			if dc.Cap > 0 {
				remaining = dc.Cap - len(records)
			}

			found, err := e.searcher.TextSearch(ctx, places.SearchRequest{
				Query:      keyword + " in " + city,
				Type:       dc.Type,
				City:       city,
				SearchTerm: keyword,
				MaxResults: remaining,
			})
			if err != nil {
				// Partial pages still count; the error only voids
				// what was never fetched.
				taskErrors++
			}

			for _, rec := range found {
				if rec.PlaceID == "" {
					continue
				}
				if idx, seen := merged[rec.PlaceID]; seen {
					records[idx] = rec
					continue
				}
				merged[rec.PlaceID] = len(records)
				records = append(records, rec)
			}
		}
	}

	if dc.Cap > 0 && len(records) > dc.Cap {
		records = records[:dc.Cap]
	}

	if len(records) == 0 {
		metrics.RecordAggregationRun(domain, time.Since(start), 0, taskErrors)
		return nil, fmt.Errorf("%w: domain %s", ErrNoPlaces, domain)
	}

	e.log.Info().Str("domain", domain).
		Int("unique", len(records)).
		Int("task_errors", taskErrors).
		Msg("Grid swept, enriching")

	enriched := e.enricher.Enrich(ctx, records, places.EnrichOptions{
		BatchSize:  e.google.DetailBatchSize,
		MaxReviews: e.google.MaxReviews,
	})

	if err := e.store.Write(domain, enriched); err != nil {
		return enriched, fmt.Errorf("persist %s: %w", domain, err)
	}

	metrics.RecordAggregationRun(domain, time.Since(start), len(enriched), taskErrors)
	e.log.Info().Str("domain", domain).
		Int("records", len(enriched)).
		Dur("elapsed", time.Since(start)).
		Msg("Aggregation run complete")

	return enriched, nil
}

// GetPlaces serves a domain cache-first: the cached blob when present
// and non-empty, otherwise a full live aggregation run.
func (e *Engine) GetPlaces(ctx context.Context, domain string) ([]models.PlaceRecord, string, error) {
	if _, ok := e.domains[domain]; !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}

	var cached []models.PlaceRecord
	if _, ok := e.store.ReadRecords(domain, &cached); ok && len(cached) > 0 {
		return cached, models.SourceCache, nil
	}

	fresh, err := e.Aggregate(ctx, domain)
	if err != nil {
		return nil, "", err
	}
	return fresh, models.SourceLive, nil
}

// Search runs the interactive city+keyword search path: geocode the
// city for a location bias, sweep up to the search cap, return the top
// slice with the first few records review-enriched.
func (e *Engine) Search(ctx context.Context, domain, city, keyword string) (*SearchResult, error) {
	if _, ok := e.domains[domain]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}

	coords, err := e.geocoder.Geocode(ctx, city)
	if err != nil {
		return nil, err
	}

	found, err := e.searcher.TextSearch(ctx, places.SearchRequest{
		Query:        keyword + " in " + city,
		Lat:          coords.Lat,
		Lng:          coords.Lng,
		HasLocation:  true,
		RadiusMeters: 5000,
		City:         city,
		SearchTerm:   keyword,
		MaxResults:   e.agg.SearchCap,
	})
	if err != nil && len(found) == 0 {
		return nil, err
	}

	if len(found) > 20 {
		found = found[:20]
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %q in %s", ErrNoPlaces, keyword, city)
	}

	// Only the head of the list gets the expensive review calls.
	head := len(found)
	if head > 10 {
		head = 10
	}
	enriched := e.enricher.Enrich(ctx, found[:head], places.EnrichOptions{
		BatchSize:      e.google.DetailBatchSize,
		MaxReviews:     e.google.SearchMaxReviews,
		IncludeAddress: true,
	})
	copy(found[:head], enriched)

	return &SearchResult{Count: len(found), Places: found}, nil
}

// Restaurants browses the seeded city list with a live nearby sweep.
// An empty city picks a random seeded city; an unknown one is rejected.
// Returns the records and the city actually used.
func (e *Engine) Restaurants(ctx context.Context, city string) ([]models.PlaceRecord, string, error) {
	var seed *SeedCity
	if city == "" {
		seed = &RestaurantCities[rand.Intn(len(RestaurantCities))]
	} else {
		for i := range RestaurantCities {
			if strings.EqualFold(RestaurantCities[i].Name, city) {
				seed = &RestaurantCities[i]
				break
			}
		}
		if seed == nil {
			return nil, "", fmt.Errorf("%w: %s", ErrCityNotSupported, city)
		}
	}

	found, err := e.searcher.NearbySearch(ctx, places.SearchRequest{
		Lat:          seed.Coords.Lat,
		Lng:          seed.Coords.Lng,
		HasLocation:  true,
		RadiusMeters: 2000,
		Type:         "restaurant",
		City:         seed.Name,
		MaxResults:   e.agg.RestaurantCap,
	})
	if err != nil && len(found) == 0 {
		return nil, seed.Name, err
	}
	if len(found) == 0 {
		return nil, seed.Name, fmt.Errorf("%w: restaurants in %s", ErrNoPlaces, seed.Name)
	}
	return found, seed.Name, nil
}

// Events serves the aggregated event list cache-first.
func (e *Engine) Events(ctx context.Context) ([]models.EventRecord, string, error) {
	var cached []models.EventRecord
	if _, ok := e.store.ReadRecords(DomainEvents, &cached); ok && len(cached) > 0 {
		return cached, models.SourceCache, nil
	}

	fresh, err := e.refreshEvents(ctx)
	if err != nil {
		return nil, "", err
	}
	return fresh, models.SourceLive, nil
}

// SearchEvents proxies an interactive keyword search to the provider.
func (e *Engine) SearchEvents(ctx context.Context, q events.SearchQuery) ([]models.EventRecord, error) {
	return e.events.Search(ctx, q)
}

// refreshEvents runs the event sweep and persists it.
func (e *Engine) refreshEvents(ctx context.Context) ([]models.EventRecord, error) {
	start := time.Now()

	records, err := e.events.DiasporaEvents(ctx)
	if err != nil {
		metrics.RecordAggregationRun(DomainEvents, time.Since(start), 0, 1)
		return nil, err
	}

	if err := e.store.Write(DomainEvents, records); err != nil {
		return records, fmt.Errorf("persist events: %w", err)
	}

	metrics.RecordAggregationRun(DomainEvents, time.Since(start), len(records), 0)
	return records, nil
}
