// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package proximity

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/gazetteer/internal/config"
	"github.com/tomtom215/gazetteer/internal/models"
	"github.com/tomtom215/gazetteer/internal/places"
	"github.com/tomtom215/gazetteer/internal/store"
)

type stubSearcher struct {
	nearby func(ctx context.Context, req places.SearchRequest) ([]models.PlaceRecord, error)
}

func (s *stubSearcher) TextSearch(context.Context, places.SearchRequest) ([]models.PlaceRecord, error) {
	return nil, nil
}

func (s *stubSearcher) NearbySearch(ctx context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
	if s.nearby == nil {
		return nil, nil
	}
	return s.nearby(ctx, req)
}

type stubGeocoder struct {
	coords map[string]models.Coordinates
}

func (s *stubGeocoder) Geocode(_ context.Context, address string) (models.Coordinates, error) {
	c, ok := s.coords[address]
	if !ok {
		return models.Coordinates{}, places.ErrNoResults
	}
	return c, nil
}

func proximityConfig() config.ProximityConfig {
	return config.ProximityConfig{
		AvgSpeedKmPerMin: 0.6,
		MaxMinutes:       60,
		LiveRadiusMeters: 5000,
	}
}

func placeAt(id string, lat, lng float64) models.PlaceRecord {
	return models.PlaceRecord{
		PlaceID:  id,
		Name:     id,
		Location: models.Coordinates{Lat: lat, Lng: lng},
	}
}

func TestHaversineKnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		wantKm                 float64
	}{
		{"new york to los angeles", 40.7128, -74.0060, 34.0522, -118.2437, 3936},
		{"london to paris", 51.5074, -0.1278, 48.8566, 2.3522, 344},
		{"same point", 6.5244, 3.3792, 6.5244, 3.3792, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if tt.wantKm == 0 {
				if got != 0 {
					t.Errorf("HaversineKm = %v, want 0", got)
				}
				return
			}
			if math.Abs(got-tt.wantKm)/tt.wantKm > 0.01 {
				t.Errorf("HaversineKm = %.1f km, want %.0f km within 1%%", got, tt.wantKm)
			}
		})
	}
}

func TestGridQueryNearby(t *testing.T) {
	g := NewGrid(10)
	g.Insert(placeAt("close", 40.72, -74.00))    // ~1km from query
	g.Insert(placeAt("medium", 40.90, -74.00))   // ~21km
	g.Insert(placeAt("far", 42.00, -74.00))      // ~143km
	g.Insert(models.PlaceRecord{PlaceID: "nocoords", Name: "skip me"})

	hits := g.QueryNearby(40.7128, -74.0060, 30)
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2 within 30km", len(hits))
	}
	for _, h := range hits {
		if h.PlaceID == "far" {
			t.Error("place outside the radius was returned")
		}
		if h.DistanceKm <= 0 || h.DistanceKm > 30 {
			t.Errorf("%s distance %.2f outside (0, 30]", h.PlaceID, h.DistanceKm)
		}
	}
}

func TestGridInsertReplacesByID(t *testing.T) {
	g := NewGrid(10)
	g.Insert(placeAt("p1", 40.0, -74.0))
	g.Insert(placeAt("p1", 41.0, -74.0))

	if g.Size() != 1 {
		t.Fatalf("Size = %d, want 1 after re-insert", g.Size())
	}

	// The old cell must be vacated: a query at the old location finds
	// nothing, one at the new location finds the place.
	if hits := g.QueryNearby(40.0, -74.0, 5); len(hits) != 0 {
		t.Errorf("stale location still indexed: %d hits", len(hits))
	}
	if hits := g.QueryNearby(41.0, -74.0, 5); len(hits) != 1 {
		t.Errorf("new location not indexed: %d hits", len(hits))
	}
}

func TestGridRemove(t *testing.T) {
	g := NewGrid(10)
	g.Insert(placeAt("p1", 40.0, -74.0))

	if !g.Remove("p1") {
		t.Error("Remove(p1) = false, want true")
	}
	if g.Remove("p1") {
		t.Error("second Remove(p1) = true, want false")
	}
	if g.Size() != 0 {
		t.Errorf("Size = %d, want 0", g.Size())
	}
}

func testFilter(t *testing.T, searcher places.Searcher, geocoder places.Geocoder) (*Filter, *store.Store) {
	t.Helper()
	st := store.New(t.TempDir(), time.Hour, time.Minute)
	if searcher == nil {
		searcher = &stubSearcher{}
	}
	if geocoder == nil {
		geocoder = &stubGeocoder{}
	}
	f := NewFilter(st, searcher, geocoder, proximityConfig(), map[string]DomainSweep{
		"worship": {Type: "church"},
	})
	return f, st
}

func TestNearbyCachedSortedAscending(t *testing.T) {
	f, st := testFilter(t, nil, nil)
	err := st.Write("worship", []models.PlaceRecord{
		placeAt("far", 40.90, -74.0060),  // ~21km
		placeAt("near", 40.72, -74.0060), // ~1km
		placeAt("mid", 40.80, -74.0060),  // ~10km
	})
	if err != nil {
		t.Fatalf("seed write: %v", err)
	}

	result, err := f.Nearby(context.Background(), "worship", 40.7128, -74.0060)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if result.Source != models.SourceCache {
		t.Errorf("source = %q, want cache", result.Source)
	}
	if result.Count != 3 {
		t.Fatalf("got %d places, want 3", result.Count)
	}

	order := []string{"near", "mid", "far"}
	for i, want := range order {
		if result.Places[i].PlaceID != want {
			t.Errorf("position %d = %s, want %s (distance ascending)", i, result.Places[i].PlaceID, want)
		}
	}
	for _, p := range result.Places {
		wantMinutes := p.DistanceKm / 0.6
		if math.Abs(p.TravelMinutes-wantMinutes) > 1e-9 {
			t.Errorf("%s travel minutes = %v, want %v", p.PlaceID, p.TravelMinutes, wantMinutes)
		}
	}
}

func TestNearbyDropsOverBudget(t *testing.T) {
	f, st := testFilter(t, nil, nil)
	// 36km is the reach at 0.6 km/min over 60 minutes. ~70km is out.
	err := st.Write("worship", []models.PlaceRecord{
		placeAt("reachable", 40.80, -74.0060),
		placeAt("too-far", 41.35, -74.0060),
	})
	if err != nil {
		t.Fatalf("seed write: %v", err)
	}

	result, err := f.Nearby(context.Background(), "worship", 40.7128, -74.0060)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if result.Count != 1 || result.Places[0].PlaceID != "reachable" {
		t.Errorf("got %+v, want only the reachable place", result.Places)
	}
}

func TestNearbyLiveFallbackMergesBlob(t *testing.T) {
	searcher := &stubSearcher{
		nearby: func(_ context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
			if req.Type != "church" {
				t.Errorf("live sweep type = %q, want church", req.Type)
			}
			if req.RadiusMeters != 5000 {
				t.Errorf("live sweep radius = %d, want 5000", req.RadiusMeters)
			}
			return []models.PlaceRecord{placeAt("live-1", req.Lat+0.01, req.Lng)}, nil
		},
	}
	f, st := testFilter(t, searcher, nil)

	result, err := f.Nearby(context.Background(), "worship", 6.5244, 3.3792)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if result.Source != models.SourceLive {
		t.Errorf("source = %q, want live", result.Source)
	}
	if result.Count != 1 || result.Places[0].PlaceID != "live-1" {
		t.Fatalf("got %+v, want the live place", result.Places)
	}

	var persisted []models.PlaceRecord
	if _, ok := st.ReadRecords("worship", &persisted); !ok || len(persisted) != 1 {
		t.Error("live results were not merged into the domain blob")
	}
}

func TestNearbyLiveFallbackSweepsKeywords(t *testing.T) {
	var keywords []string
	searcher := &stubSearcher{
		nearby: func(_ context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
			keywords = append(keywords, req.Keyword)
			switch req.Keyword {
			case "church":
				return []models.PlaceRecord{
					placeAt("live-1", req.Lat+0.01, req.Lng),
					placeAt("live-2", req.Lat+0.02, req.Lng),
				}, nil
			case "ministry":
				// live-2 overlaps the church sweep and must not repeat.
				return []models.PlaceRecord{
					placeAt("live-2", req.Lat+0.02, req.Lng),
					placeAt("live-3", req.Lat+0.03, req.Lng),
				}, nil
			default:
				t.Errorf("unexpected sweep keyword %q", req.Keyword)
				return nil, nil
			}
		},
	}

	st := store.New(t.TempDir(), time.Hour, time.Minute)
	f := NewFilter(st, searcher, &stubGeocoder{}, proximityConfig(), map[string]DomainSweep{
		"worship": {Type: "church", Keywords: []string{"church", "ministry"}},
	})

	result, err := f.Nearby(context.Background(), "worship", 6.5244, 3.3792)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if result.Source != models.SourceLive {
		t.Errorf("source = %q, want live", result.Source)
	}
	if result.Count != 3 {
		t.Fatalf("got %d places, want 3 deduplicated across sweeps", result.Count)
	}
	if len(keywords) != 2 || keywords[0] != "church" || keywords[1] != "ministry" {
		t.Errorf("sweep keywords = %v, want [church ministry]", keywords)
	}

	var persisted []models.PlaceRecord
	if _, ok := st.ReadRecords("worship", &persisted); !ok || len(persisted) != 3 {
		t.Errorf("persisted %d records, want the deduplicated union of 3", len(persisted))
	}
}

func TestNearbyLiveSweepContainsKeywordFailure(t *testing.T) {
	searcher := &stubSearcher{
		nearby: func(_ context.Context, req places.SearchRequest) ([]models.PlaceRecord, error) {
			if req.Keyword == "church" {
				return nil, places.ErrProviderUnavailable
			}
			return []models.PlaceRecord{placeAt("live-1", req.Lat+0.01, req.Lng)}, nil
		},
	}

	st := store.New(t.TempDir(), time.Hour, time.Minute)
	f := NewFilter(st, searcher, &stubGeocoder{}, proximityConfig(), map[string]DomainSweep{
		"worship": {Type: "church", Keywords: []string{"church", "ministry"}},
	})

	result, err := f.Nearby(context.Background(), "worship", 6.5244, 3.3792)
	if err != nil {
		t.Fatalf("Nearby with one failed keyword: %v", err)
	}
	if result.Count != 1 || result.Places[0].PlaceID != "live-1" {
		t.Errorf("got %+v, want the surviving sweep's place", result.Places)
	}
}

func TestNearbyNothingAnywhere(t *testing.T) {
	f, _ := testFilter(t, nil, nil)

	_, err := f.Nearby(context.Background(), "worship", 6.5244, 3.3792)
	if !errors.Is(err, ErrNoneNearby) {
		t.Errorf("Nearby = %v, want ErrNoneNearby", err)
	}
}

func TestNearbyPlaceGeocodes(t *testing.T) {
	geocoder := &stubGeocoder{coords: map[string]models.Coordinates{
		"Brooklyn": {Lat: 40.6782, Lng: -73.9442},
	}}
	f, st := testFilter(t, nil, geocoder)
	if err := st.Write("worship", []models.PlaceRecord{placeAt("p1", 40.68, -73.94)}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	result, err := f.NearbyPlace(context.Background(), "worship", "Brooklyn")
	if err != nil {
		t.Fatalf("NearbyPlace: %v", err)
	}
	if result.Count != 1 {
		t.Errorf("got %d places, want 1", result.Count)
	}

	if _, err := f.NearbyPlace(context.Background(), "worship", "Atlantis"); !errors.Is(err, places.ErrNoResults) {
		t.Errorf("NearbyPlace(Atlantis) = %v, want ErrNoResults", err)
	}
}

func TestGridRebuiltAfterBlobRewrite(t *testing.T) {
	f, st := testFilter(t, nil, nil)
	if err := st.Write("worship", []models.PlaceRecord{placeAt("old", 40.72, -74.0060)}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	if _, err := f.Nearby(context.Background(), "worship", 40.7128, -74.0060); err != nil {
		t.Fatalf("first Nearby: %v", err)
	}

	// Rewriting the blob changes its timestamp, so the next query must
	// see the new set, not the cached grid.
	time.Sleep(5 * time.Millisecond)
	if err := st.Write("worship", []models.PlaceRecord{placeAt("new", 40.72, -74.0060)}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	result, err := f.Nearby(context.Background(), "worship", 40.7128, -74.0060)
	if err != nil {
		t.Fatalf("second Nearby: %v", err)
	}
	if result.Count != 1 || result.Places[0].PlaceID != "new" {
		t.Errorf("got %+v, want the rewritten set", result.Places)
	}
}
