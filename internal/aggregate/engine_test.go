// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/gazetteer/internal/config"
	"github.com/tomtom215/gazetteer/internal/events"
	"github.com/tomtom215/gazetteer/internal/models"
	"github.com/tomtom215/gazetteer/internal/places"
	"github.com/tomtom215/gazetteer/internal/store"
)

type fakeSearcher struct {
	text   func(ctx context.Context, req places.SearchRequest) ([]models.PlaceRecord, error)
	nearby func(ctx context.Context, req places.SearchRequest) ([]models.PlaceRecord, error)
}

func (f *fakeSearcher) TextSearch(ctx context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
	if f.text == nil {
		return nil, nil
	}
	return f.text(ctx, req)
}

func (f *fakeSearcher) NearbySearch(ctx context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
	if f.nearby == nil {
		return nil, nil
	}
	return f.nearby(ctx, req)
}

type fakeEnricher struct {
	calls []places.EnrichOptions
	sizes []int
}

func (f *fakeEnricher) Enrich(_ context.Context, records []models.PlaceRecord, opts places.EnrichOptions) []models.PlaceRecord {
	f.calls = append(f.calls, opts)
	f.sizes = append(f.sizes, len(records))
	out := make([]models.PlaceRecord, len(records))
	copy(out, records)
	for i := range out {
		out[i].Rating = 4.5
	}
	return out
}

type fakeGeocoder struct {
	coords map[string]models.Coordinates
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (models.Coordinates, error) {
	c, ok := f.coords[address]
	if !ok {
		return models.Coordinates{}, places.ErrNoResults
	}
	return c, nil
}

type fakeEvents struct {
	diaspora func(ctx context.Context) ([]models.EventRecord, error)
	search   func(ctx context.Context, q events.SearchQuery) ([]models.EventRecord, error)
}

func (f *fakeEvents) DiasporaEvents(ctx context.Context) ([]models.EventRecord, error) {
	if f.diaspora == nil {
		return nil, events.ErrNoEvents
	}
	return f.diaspora(ctx)
}

func (f *fakeEvents) Search(ctx context.Context, q events.SearchQuery) ([]models.EventRecord, error) {
	if f.search == nil {
		return nil, events.ErrNoEvents
	}
	return f.search(ctx, q)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Cache: config.CacheConfig{Dir: t.TempDir(), TTL: time.Hour},
		Google: config.GoogleConfig{
			DetailBatchSize:  30,
			MaxReviews:       10,
			SearchMaxReviews: 3,
		},
		Aggregate: config.AggregateConfig{
			WorshipCap:    2000,
			CateringCap:   1500,
			RealEstateCap: 2000,
			RestaurantCap: 200,
			SearchCap:     100,
		},
	}
}

func testEngine(t *testing.T, cfg *config.Config, s places.Searcher, e places.Enricher, g places.Geocoder, ev events.Provider) (*Engine, *store.Store) {
	t.Helper()
	st := store.New(cfg.Cache.Dir, cfg.Cache.TTL, time.Minute)
	if e == nil {
		e = &fakeEnricher{}
	}
	if g == nil {
		g = &fakeGeocoder{}
	}
	if ev == nil {
		ev = &fakeEvents{}
	}
	return New(s, e, g, ev, st, cfg), st
}

func place(id, name string) models.PlaceRecord {
	return models.PlaceRecord{PlaceID: id, Name: name}
}

func TestAggregateDedupesByPlaceID(t *testing.T) {
	// Every task returns the same two places plus one task-specific
	// one, so the merged set shows both dedupe and accumulation.
	searcher := &fakeSearcher{
		text: func(_ context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
			if req.City != "New York" {
				return nil, nil
			}
			return []models.PlaceRecord{
				place("shared-1", "Shared One"),
				place("shared-2", "Shared Two"),
				place("unique-"+req.SearchTerm, req.SearchTerm),
			}, nil
		},
	}
	cfg := testConfig(t)
	eng, _ := testEngine(t, cfg, searcher, nil, nil, nil)

	records, err := eng.Aggregate(context.Background(), DomainCatering)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	want := 2 + len(cateringKeywords)
	if len(records) != want {
		t.Fatalf("got %d records, want %d unique", len(records), want)
	}

	seen := make(map[string]bool)
	for _, r := range records {
		if seen[r.PlaceID] {
			t.Errorf("duplicate place_id %s in aggregated records", r.PlaceID)
		}
		seen[r.PlaceID] = true
	}
}

func TestAggregateLastWriteWins(t *testing.T) {
	// A place seen by a later task overwrites the earlier record but
	// keeps its original position.
	var call int
	searcher := &fakeSearcher{
		text: func(_ context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
			call++
			if call == 1 {
				return []models.PlaceRecord{{PlaceID: "p1", Name: "Old Name", City: req.City}}, nil
			}
			if call == 2 {
				return []models.PlaceRecord{{PlaceID: "p1", Name: "New Name", City: req.City}}, nil
			}
			return nil, nil
		},
	}
	cfg := testConfig(t)
	eng, _ := testEngine(t, cfg, searcher, nil, nil, nil)

	records, err := eng.Aggregate(context.Background(), DomainCatering)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Name != "New Name" {
		t.Errorf("Name = %q, want the later task's record", records[0].Name)
	}
}

func TestAggregateCapEnforced(t *testing.T) {
	var n int
	searcher := &fakeSearcher{
		text: func(context.Context, places.SearchRequest) ([]models.PlaceRecord, error) {
			out := make([]models.PlaceRecord, 7)
			for i := range out {
				n++
				out[i] = place(fmt.Sprintf("p%d", n), "Place")
			}
			return out, nil
		},
	}
	cfg := testConfig(t)
	cfg.Aggregate.CateringCap = 10
	eng, _ := testEngine(t, cfg, searcher, nil, nil, nil)

	records, err := eng.Aggregate(context.Background(), DomainCatering)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(records) != 10 {
		t.Errorf("got %d records, want cap of 10", len(records))
	}
}

func TestAggregateContainsTaskFailures(t *testing.T) {
	// One task fails after a partial page. The run keeps its partial
	// records and the other tasks' results.
	searcher := &fakeSearcher{
		text: func(_ context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
			if req.City != "New York" {
				return nil, nil
			}
			if req.SearchTerm == "nigerian catering" {
				return []models.PlaceRecord{place("partial-1", "Partial")}, errors.New("page 2 failed")
			}
			return []models.PlaceRecord{place("ok-"+req.SearchTerm, req.SearchTerm)}, nil
		},
	}
	cfg := testConfig(t)
	eng, _ := testEngine(t, cfg, searcher, nil, nil, nil)

	records, err := eng.Aggregate(context.Background(), DomainCatering)
	if err != nil {
		t.Fatalf("Aggregate should contain task failures, got %v", err)
	}

	ids := make(map[string]bool)
	for _, r := range records {
		ids[r.PlaceID] = true
	}
	if !ids["partial-1"] {
		t.Error("partial records from the failed task were dropped")
	}
	if len(records) != len(cateringKeywords) {
		t.Errorf("got %d records, want %d", len(records), len(cateringKeywords))
	}
}

func TestAggregatePersistsSingleBlob(t *testing.T) {
	searcher := &fakeSearcher{
		text: func(_ context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
			if req.City == "New York" && req.SearchTerm == "african catering" {
				return []models.PlaceRecord{place("p1", "A"), place("p2", "B")}, nil
			}
			return nil, nil
		},
	}
	cfg := testConfig(t)
	eng, st := testEngine(t, cfg, searcher, nil, nil, nil)

	if _, err := eng.Aggregate(context.Background(), DomainCatering); err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	var persisted []models.PlaceRecord
	if _, ok := st.ReadRecords(DomainCatering, &persisted); !ok {
		t.Fatal("aggregation did not persist the catering blob")
	}
	if len(persisted) != 2 {
		t.Errorf("persisted %d records, want 2", len(persisted))
	}
	if persisted[0].Rating != 4.5 {
		t.Error("persisted records were not enriched")
	}
}

func TestAggregateUnknownDomain(t *testing.T) {
	cfg := testConfig(t)
	eng, _ := testEngine(t, cfg, &fakeSearcher{}, nil, nil, nil)

	if _, err := eng.Aggregate(context.Background(), "bogus"); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("Aggregate(bogus) = %v, want ErrUnknownDomain", err)
	}
}

func TestAggregateEmptyRun(t *testing.T) {
	cfg := testConfig(t)
	eng, _ := testEngine(t, cfg, &fakeSearcher{}, nil, nil, nil)

	if _, err := eng.Aggregate(context.Background(), DomainCatering); !errors.Is(err, ErrNoPlaces) {
		t.Errorf("empty Aggregate = %v, want ErrNoPlaces", err)
	}
}

func TestGetPlacesCacheFirst(t *testing.T) {
	searcher := &fakeSearcher{
		text: func(context.Context, places.SearchRequest) ([]models.PlaceRecord, error) {
			t.Error("cached read must not hit the provider")
			return nil, nil
		},
	}
	cfg := testConfig(t)
	eng, st := testEngine(t, cfg, searcher, nil, nil, nil)

	if err := st.Write(DomainWorship, []models.PlaceRecord{place("c1", "Cached")}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	records, source, err := eng.GetPlaces(context.Background(), DomainWorship)
	if err != nil {
		t.Fatalf("GetPlaces: %v", err)
	}
	if source != models.SourceCache {
		t.Errorf("source = %q, want cache", source)
	}
	if len(records) != 1 || records[0].PlaceID != "c1" {
		t.Errorf("got %+v, want the cached record", records)
	}
}

func TestGetPlacesMissRunsLive(t *testing.T) {
	searcher := &fakeSearcher{
		text: func(_ context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
			if req.City == "New York" && req.SearchTerm == cateringKeywords[0] {
				return []models.PlaceRecord{place("live-1", "Live")}, nil
			}
			return nil, nil
		},
	}
	cfg := testConfig(t)
	eng, st := testEngine(t, cfg, searcher, nil, nil, nil)

	records, source, err := eng.GetPlaces(context.Background(), DomainCatering)
	if err != nil {
		t.Fatalf("GetPlaces: %v", err)
	}
	if source != models.SourceLive {
		t.Errorf("source = %q, want live", source)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	// The live run persists so the next read is a cache hit.
	var persisted []models.PlaceRecord
	if _, ok := st.ReadRecords(DomainCatering, &persisted); !ok || len(persisted) != 1 {
		t.Error("live run did not persist its records")
	}
}

func TestSearchGeocodeFailure(t *testing.T) {
	cfg := testConfig(t)
	eng, _ := testEngine(t, cfg, &fakeSearcher{}, nil, &fakeGeocoder{}, nil)

	_, err := eng.Search(context.Background(), DomainWorship, "Atlantis", "church")
	if !errors.Is(err, places.ErrNoResults) {
		t.Errorf("Search = %v, want ErrNoResults from geocoding", err)
	}
}

func TestSearchTopSliceAndHeadEnrichment(t *testing.T) {
	searcher := &fakeSearcher{
		text: func(_ context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
			if !req.HasLocation || req.RadiusMeters != 5000 {
				t.Errorf("search not location-biased: %+v", req)
			}
			out := make([]models.PlaceRecord, 35)
			for i := range out {
				out[i] = place(fmt.Sprintf("s%d", i), "Result")
			}
			return out, nil
		},
	}
	enricher := &fakeEnricher{}
	geocoder := &fakeGeocoder{coords: map[string]models.Coordinates{
		"London": {Lat: 51.5074, Lng: -0.1278},
	}}
	cfg := testConfig(t)
	eng, _ := testEngine(t, cfg, searcher, enricher, geocoder, nil)

	result, err := eng.Search(context.Background(), DomainWorship, "London", "Nigerian church")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if result.Count != 20 || len(result.Places) != 20 {
		t.Errorf("got %d places, want top 20", len(result.Places))
	}
	if len(enricher.sizes) != 1 || enricher.sizes[0] != 10 {
		t.Fatalf("enriched %v records, want one batch of the top 10", enricher.sizes)
	}
	opts := enricher.calls[0]
	if opts.MaxReviews != 3 || !opts.IncludeAddress {
		t.Errorf("enrich opts = %+v, want 3 reviews with address", opts)
	}
	if result.Places[0].Rating != 4.5 {
		t.Error("head records were not replaced with enriched copies")
	}
	if result.Places[19].Rating == 4.5 {
		t.Error("tail records should stay unenriched")
	}
}

func TestRestaurantsUnsupportedCity(t *testing.T) {
	cfg := testConfig(t)
	eng, _ := testEngine(t, cfg, &fakeSearcher{}, nil, nil, nil)

	_, _, err := eng.Restaurants(context.Background(), "Springfield")
	if !errors.Is(err, ErrCityNotSupported) {
		t.Errorf("Restaurants = %v, want ErrCityNotSupported", err)
	}
}

func TestRestaurantsSeededCity(t *testing.T) {
	searcher := &fakeSearcher{
		nearby: func(_ context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
			if req.Type != "restaurant" || req.RadiusMeters != 2000 {
				t.Errorf("nearby request = %+v, want restaurant within 2000m", req)
			}
			if req.Lat != 51.5074 {
				t.Errorf("Lat = %v, want the London seed", req.Lat)
			}
			return []models.PlaceRecord{place("r1", "Jollof House")}, nil
		},
	}
	cfg := testConfig(t)
	eng, _ := testEngine(t, cfg, searcher, nil, nil, nil)

	// Lookup is case-insensitive against the seeded list.
	records, city, err := eng.Restaurants(context.Background(), "london")
	if err != nil {
		t.Fatalf("Restaurants: %v", err)
	}
	if city != "London" {
		t.Errorf("city = %q, want the canonical seed name", city)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
}

func TestRestaurantsRandomCity(t *testing.T) {
	var usedCity string
	searcher := &fakeSearcher{
		nearby: func(_ context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
			usedCity = req.City
			return []models.PlaceRecord{place("r1", "Suya Spot")}, nil
		},
	}
	cfg := testConfig(t)
	eng, _ := testEngine(t, cfg, searcher, nil, nil, nil)

	_, city, err := eng.Restaurants(context.Background(), "")
	if err != nil {
		t.Fatalf("Restaurants: %v", err)
	}

	found := false
	for _, seed := range RestaurantCities {
		if strings.EqualFold(seed.Name, city) {
			found = true
		}
	}
	if !found {
		t.Errorf("random city %q is not in the seeded list", city)
	}
	if usedCity != city {
		t.Errorf("searched city %q but reported %q", usedCity, city)
	}
}

func TestEventsCacheFirst(t *testing.T) {
	provider := &fakeEvents{
		diaspora: func(context.Context) ([]models.EventRecord, error) {
			t.Error("cached read must not hit the provider")
			return nil, nil
		},
	}
	cfg := testConfig(t)
	eng, st := testEngine(t, cfg, &fakeSearcher{}, nil, nil, provider)

	if err := st.Write(DomainEvents, []models.EventRecord{{ID: "e1", Name: "Cached Fest"}}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	records, source, err := eng.Events(context.Background())
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if source != models.SourceCache || len(records) != 1 {
		t.Errorf("got %d records from %q, want 1 from cache", len(records), source)
	}
}

func TestRefreshEventsPersists(t *testing.T) {
	provider := &fakeEvents{
		diaspora: func(context.Context) ([]models.EventRecord, error) {
			return []models.EventRecord{{ID: "e1"}, {ID: "e2"}}, nil
		},
	}
	cfg := testConfig(t)
	eng, st := testEngine(t, cfg, &fakeSearcher{}, nil, nil, provider)

	count, err := eng.Refresh(context.Background(), DomainEvents)
	if err != nil {
		t.Fatalf("Refresh(events): %v", err)
	}
	if count != 2 {
		t.Errorf("Refresh count = %d, want 2", count)
	}

	var persisted []models.EventRecord
	if _, ok := st.ReadRecords(DomainEvents, &persisted); !ok || len(persisted) != 2 {
		t.Error("event refresh did not persist the blob")
	}
}

func TestIsDomain(t *testing.T) {
	cfg := testConfig(t)
	eng, _ := testEngine(t, cfg, &fakeSearcher{}, nil, nil, nil)

	for _, name := range []string{DomainWorship, DomainCatering, DomainRealEstate, DomainEvents} {
		if !eng.IsDomain(name) {
			t.Errorf("IsDomain(%s) = false", name)
		}
	}
	if eng.IsDomain("hotels") {
		t.Error("IsDomain(hotels) = true")
	}
}
