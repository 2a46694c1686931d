// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/gazetteer/internal/config"
	"github.com/tomtom215/gazetteer/internal/models"
)

func testClient(baseURL string) *Client {
	return NewClient(config.TicketmasterConfig{
		Enabled:    true,
		APIKey:     "test-key",
		BaseURL:    baseURL,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		PageSize:   20,
		TopN:       10,
	})
}

func eventJSON(id, name, dateTime string) string {
	return fmt.Sprintf(`{"id":%q,"name":%q,"type":"event","dates":{"start":{"dateTime":%q}}}`, id, name, dateTime)
}

func eventsBody(events ...string) string {
	return `{"_embedded":{"events":[` + strings.Join(events, ",") + `]}}`
}

func TestDiasporaEventsDedupesAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every term returns the same two events plus one unique late
		// one, so dedupe and date-ascending order are observable.
		fmt.Fprint(w, eventsBody(
			eventJSON("e2", "Afrobeats Live", "2026-10-01T20:00:00Z"),
			eventJSON("e1", "Amapiano Night", "2026-09-01T20:00:00Z"),
		))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	events, err := c.DiasporaEvents(context.Background())
	if err != nil {
		t.Fatalf("DiasporaEvents: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 after dedupe", len(events))
	}
	if events[0].ID != "e1" || events[1].ID != "e2" {
		t.Errorf("events not date-ascending: %s, %s", events[0].ID, events[1].ID)
	}
}

func TestDiasporaEventsTopNCut(t *testing.T) {
	var counter int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unique events per request so the merged set exceeds TopN.
		base := atomic.AddInt32(&counter, 1) * 100
		var evs []string
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("e%d", int(base)+i)
			evs = append(evs, eventJSON(id, "African Festival", fmt.Sprintf("2026-09-%02dT20:00:00Z", i+1)))
		}
		fmt.Fprint(w, eventsBody(evs...))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	events, err := c.DiasporaEvents(context.Background())
	if err != nil {
		t.Fatalf("DiasporaEvents: %v", err)
	}
	if len(events) != 10 {
		t.Errorf("got %d events, want TopN=10", len(events))
	}
}

func TestDiasporaEventsFallback(t *testing.T) {
	var sawFallback atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("classificationName") == "Music" {
			sawFallback.Store(true)
			fmt.Fprint(w, eventsBody(eventJSON("f1", "Afrobeat Showcase", "2026-09-15T20:00:00Z")))
			return
		}
		fmt.Fprint(w, eventsBody())
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	events, err := c.DiasporaEvents(context.Background())
	if err != nil {
		t.Fatalf("DiasporaEvents: %v", err)
	}
	if !sawFallback.Load() {
		t.Error("classification fallback was never queried")
	}
	if len(events) != 1 || events[0].ID != "f1" {
		t.Errorf("got %+v, want the fallback event", events)
	}
}

func TestDiasporaEventsNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, eventsBody())
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.DiasporaEvents(context.Background())
	if !errors.Is(err, ErrNoEvents) {
		t.Errorf("DiasporaEvents = %v, want ErrNoEvents", err)
	}
}

func TestFetchRetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, eventsBody(eventJSON("e1", "Burna Boy", "2026-09-01T20:00:00Z")))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	events, err := c.Search(context.Background(), SearchQuery{Keyword: "Burna Boy"})
	if err != nil {
		t.Fatalf("Search after 429 retries: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("made %d calls, want 3 (two 429s then success)", calls)
	}
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Search(context.Background(), SearchQuery{Keyword: "x"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Search = %v, want ErrProviderUnavailable", err)
	}
}

func TestSearchPassthroughFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("city") != "London" {
			t.Errorf("city = %q, want London", q.Get("city"))
		}
		if q.Get("size") != "5" {
			t.Errorf("size = %q, want 5", q.Get("size"))
		}
		fmt.Fprint(w, eventsBody(eventJSON("e1", "Festival", "2026-09-01T20:00:00Z")))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Search(context.Background(), SearchQuery{
		Keyword: "Festival",
		Size:    5,
		Filters: map[string]string{"city": "London"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestFilterRelevant(t *testing.T) {
	events := []models.EventRecord{
		{ID: "a", Name: "Amapiano Sundays"},
		{ID: "b", Name: "Generic Rock Show"},
		{ID: "c", Name: "Evening Concert", Attractions: []models.EventAttraction{{Name: "Burna Boy"}}},
		{ID: "d", Name: "Jazz Night", Genre: "Jazz"},
	}

	got := filterRelevant(events)
	if len(got) != 2 {
		t.Fatalf("got %d relevant events, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("wrong events kept: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestDedupeLastWriteWins(t *testing.T) {
	events := []models.EventRecord{
		{ID: "a", Name: "First"},
		{ID: "b", Name: "Other"},
		{ID: "a", Name: "Second"},
	}

	got := dedupe(events)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Name != "Second" {
		t.Errorf("duplicate id should keep the later record, got %q", got[0].Name)
	}
}
