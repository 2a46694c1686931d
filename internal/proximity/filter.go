// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package proximity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/gazetteer/internal/config"
	"github.com/tomtom215/gazetteer/internal/logging"
	"github.com/tomtom215/gazetteer/internal/models"
	"github.com/tomtom215/gazetteer/internal/places"
	"github.com/tomtom215/gazetteer/internal/store"
)

// ErrNoneNearby indicates neither the cached set nor the live fallback
// produced a reachable place.
var ErrNoneNearby = errors.New("no places nearby")

// Filter answers nearby queries against a domain's aggregated places.
// Queries hit the cached set first; when nothing reachable is cached,
// a live provider sweep around the point fills the gap and its results
// are merged back into the domain blob.
type Filter struct {
	store    *store.Store
	searcher places.Searcher
	geocoder places.Geocoder
	cfg      config.ProximityConfig
	sweeps   map[string]DomainSweep
	log      zerolog.Logger

	mu    sync.Mutex
	grids map[string]*domainGrid
}

// DomainSweep describes a domain's live fallback: the provider type
// filter plus the fixed keyword list, each keyword issued as its own
// nearby search.
type DomainSweep struct {
	Type     string
	Keywords []string
}

// domainGrid caches a built grid together with the blob timestamp it
// was built from, so a refresh invalidates it on the next query.
type domainGrid struct {
	grid      *Grid
	fetchedAt time.Time
}

// NewFilter creates a proximity filter. sweeps maps domain names to
// their live-fallback sweep parameters.
func NewFilter(st *store.Store, searcher places.Searcher, geocoder places.Geocoder,
	cfg config.ProximityConfig, sweeps map[string]DomainSweep) *Filter {
	return &Filter{
		store:    st,
		searcher: searcher,
		geocoder: geocoder,
		cfg:      cfg,
		sweeps:   sweeps,
		grids:    make(map[string]*domainGrid),
		log:      logging.WithComponent("proximity"),
	}
}

// Nearby returns the domain's places reachable from the point, sorted
// by distance ascending. Reachable means the estimated travel time at
// the configured average speed stays within the configured budget.
func (f *Filter) Nearby(ctx context.Context, domain string, lat, lng float64) (*models.NearbyResult, error) {
	radiusKm := f.cfg.AvgSpeedKmPerMin * float64(f.cfg.MaxMinutes)

	grid := f.gridFor(domain)
	hits := grid.QueryNearby(lat, lng, radiusKm)
	hits = f.annotate(hits)

	if len(hits) > 0 {
		return &models.NearbyResult{
			Source: models.SourceCache,
			Count:  len(hits),
			Places: hits,
		}, nil
	}

	live, err := f.liveSweep(ctx, domain, lat, lng)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, fmt.Errorf("%w: %s within %g minutes", ErrNoneNearby, domain, f.cfg.MaxMinutes)
	}

	return &models.NearbyResult{
		Source: models.SourceLive,
		Count:  len(live),
		Places: live,
	}, nil
}

// NearbyPlace geocodes a free-form place name and runs Nearby from the
// resulting point.
func (f *Filter) NearbyPlace(ctx context.Context, domain, place string) (*models.NearbyResult, error) {
	coords, err := f.geocoder.Geocode(ctx, place)
	if err != nil {
		return nil, err
	}
	return f.Nearby(ctx, domain, coords.Lat, coords.Lng)
}

// gridFor returns the domain's grid, rebuilding it when the underlying
// blob has been rewritten since the last build.
func (f *Filter) gridFor(domain string) *Grid {
	var records []models.PlaceRecord
	fetchedAt, ok := f.store.ReadRecords(domain, &records)

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, exists := f.grids[domain]; exists && ok && cached.fetchedAt.Equal(fetchedAt) {
		return cached.grid
	}

	grid := NewGrid(f.cfg.AvgSpeedKmPerMin * float64(f.cfg.MaxMinutes) / 4)
	grid.InsertAll(records)
	f.grids[domain] = &domainGrid{grid: grid, fetchedAt: fetchedAt}

	f.log.Debug().Str("domain", domain).
		Int("places", grid.Size()).
		Msg("Proximity grid rebuilt")

	return grid
}

// annotate fills travel estimates, drops anything over the time
// budget, and sorts by distance ascending.
func (f *Filter) annotate(hits []models.NearbyPlace) []models.NearbyPlace {
	out := hits[:0]
	for _, h := range hits {
		if f.cfg.AvgSpeedKmPerMin > 0 {
			h.TravelMinutes = h.DistanceKm / f.cfg.AvgSpeedKmPerMin
		}
		if f.cfg.MaxMinutes > 0 && h.TravelMinutes > float64(f.cfg.MaxMinutes) {
			continue
		}
		out = append(out, h)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}

// liveSweep runs the domain's fixed keyword list as individual nearby
// searches around the point, deduplicates across sweeps by place id,
// and merges anything new into the domain blob so later cached queries
// see it. A failed keyword is contained; the sweep only errors when
// every keyword failed and nothing was found.
func (f *Filter) liveSweep(ctx context.Context, domain string, lat, lng float64) ([]models.NearbyPlace, error) {
	sweep := f.sweeps[domain]
	keywords := sweep.Keywords
	if len(keywords) == 0 {
		keywords = []string{""}
	}

	var found []models.PlaceRecord
	seen := make(map[string]bool)
	var lastErr error

	for _, kw := range keywords {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		records, err := f.searcher.NearbySearch(ctx, places.SearchRequest{
			Lat:          lat,
			Lng:          lng,
			HasLocation:  true,
			RadiusMeters: f.cfg.LiveRadiusMeters,
			Type:         sweep.Type,
			Keyword:      kw,
			SearchTerm:   kw,
			MaxResults:   0,
		})
		if err != nil {
			lastErr = err
			f.log.Warn().Err(err).
				Str("domain", domain).
				Str("keyword", kw).
				Msg("Live nearby sweep failed for keyword")
			continue
		}
		for _, p := range records {
			if p.PlaceID == "" || seen[p.PlaceID] {
				continue
			}
			seen[p.PlaceID] = true
			found = append(found, p)
		}
	}
	if len(found) == 0 && lastErr != nil {
		return nil, lastErr
	}

	hits := make([]models.NearbyPlace, 0, len(found))
	for _, p := range found {
		if !p.HasCoordinates() {
			continue
		}
		hits = append(hits, models.NearbyPlace{
			PlaceRecord: p,
			DistanceKm:  HaversineKm(lat, lng, p.Location.Lat, p.Location.Lng),
		})
	}
	hits = f.annotate(hits)

	if len(hits) > 0 {
		f.mergePersist(domain, found)
	}
	return hits, nil
}

// mergePersist folds live records into the domain blob, last write
// wins per place id. Persistence failures are logged, not fatal; the
// caller already has the results.
func (f *Filter) mergePersist(domain string, found []models.PlaceRecord) {
	var existing []models.PlaceRecord
	f.store.ReadRecords(domain, &existing)

	index := make(map[string]int, len(existing))
	for i := range existing {
		index[existing[i].PlaceID] = i
	}

	merged := existing
	added := 0
	for _, p := range found {
		if p.PlaceID == "" {
			continue
		}
		if i, ok := index[p.PlaceID]; ok {
			merged[i] = p
			continue
		}
		index[p.PlaceID] = len(merged)
		merged = append(merged, p)
		added++
	}

	if err := f.store.Write(domain, merged); err != nil {
		f.log.Warn().Err(err).Str("domain", domain).Msg("Failed to persist live nearby results")
		return
	}

	f.log.Info().Str("domain", domain).
		Int("added", added).
		Int("total", len(merged)).
		Msg("Merged live nearby results into domain blob")
}
