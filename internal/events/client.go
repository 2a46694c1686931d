// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

// Package events implements the Ticketmaster Discovery client: a fixed
// artist/genre term grid searched concurrently, a classification
// fallback when the grid finds nothing, dedupe by event id, a
// diaspora-relevance filter, and a date-ascending top-N cut.
package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/gazetteer/internal/config"
	"github.com/tomtom215/gazetteer/internal/logging"
	"github.com/tomtom215/gazetteer/internal/metrics"
	"github.com/tomtom215/gazetteer/internal/models"
)

var (
	// ErrNoEvents indicates no events matched, even after the
	// classification fallback.
	ErrNoEvents = errors.New("no events found")

	// ErrProviderUnavailable indicates the provider refused or failed
	// the request after all retries.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// Provider is the event discovery surface consumed by the aggregation
// engine and the API layer.
type Provider interface {
	DiasporaEvents(ctx context.Context) ([]models.EventRecord, error)
	Search(ctx context.Context, req SearchQuery) ([]models.EventRecord, error)
}

// Client talks to the Ticketmaster Discovery API.
type Client struct {
	cfg        config.TicketmasterConfig
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a Ticketmaster Discovery client.
func NewClient(cfg config.TicketmasterConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        logging.WithComponent("events"),
	}
}

var _ Provider = (*Client)(nil)

// SearchQuery is a keyword search with passthrough provider filters
// (city, countryCode, startDateTime and the like).
type SearchQuery struct {
	Keyword string
	Size    int
	Filters map[string]string
}

// tmResponse is the wire shape of a Discovery events call.
type tmResponse struct {
	Embedded struct {
		Events []tmEvent `json:"events"`
	} `json:"_embedded"`
}

type tmEvent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	URL    string `json:"url"`
	Info   string `json:"info"`
	Please string `json:"pleaseNote"`
	Images []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Ratio  string `json:"ratio"`
	} `json:"images"`
	Dates struct {
		Start struct {
			LocalDate string `json:"localDate"`
			DateTime  string `json:"dateTime"`
		} `json:"start"`
		Timezone string `json:"timezone"`
	} `json:"dates"`
	Classifications []struct {
		Segment struct {
			Name string `json:"name"`
		} `json:"segment"`
		Genre struct {
			Name string `json:"name"`
		} `json:"genre"`
	} `json:"classifications"`
	Embedded struct {
		Venues []struct {
			Name string `json:"name"`
			City struct {
				Name string `json:"name"`
			} `json:"city"`
			Country struct {
				Name string `json:"name"`
			} `json:"country"`
			Address struct {
				Line1 string `json:"line1"`
			} `json:"address"`
			Location struct {
				Latitude  string `json:"latitude"`
				Longitude string `json:"longitude"`
			} `json:"location"`
		} `json:"venues"`
		Attractions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"attractions"`
	} `json:"_embedded"`
}

// toRecord converts a wire event into an EventRecord.
func (e *tmEvent) toRecord(searchTerm string) models.EventRecord {
	rec := models.EventRecord{
		ID:         e.ID,
		Name:       e.Name,
		Type:       e.Type,
		URL:        e.URL,
		Info:       e.Info,
		PleaseNote: e.Please,
		SearchTerm: searchTerm,
		Dates: models.EventDates{
			LocalDate: e.Dates.Start.LocalDate,
			DateTime:  e.Dates.Start.DateTime,
			Timezone:  e.Dates.Timezone,
		},
	}

	for _, img := range e.Images {
		rec.Images = append(rec.Images, models.EventImage{
			URL: img.URL, Width: img.Width, Height: img.Height, Ratio: img.Ratio,
		})
	}
	if len(e.Classifications) > 0 {
		rec.Segment = e.Classifications[0].Segment.Name
		rec.Genre = e.Classifications[0].Genre.Name
	}
	for _, v := range e.Embedded.Venues {
		lat, _ := strconv.ParseFloat(v.Location.Latitude, 64)
		lng, _ := strconv.ParseFloat(v.Location.Longitude, 64)
		rec.Venues = append(rec.Venues, models.EventVenue{
			Name:     v.Name,
			City:     v.City.Name,
			Country:  v.Country.Name,
			Address:  v.Address.Line1,
			Location: models.Coordinates{Lat: lat, Lng: lng},
		})
	}
	for _, a := range e.Embedded.Attractions {
		rec.Attractions = append(rec.Attractions, models.EventAttraction{ID: a.ID, Name: a.Name})
	}
	return rec
}

// DiasporaEvents runs the full aggregation sweep: all grid terms
// concurrently, a classification fallback if the grid comes up empty,
// then dedupe, relevance filter, date sort and top-N cut.
//
// A failed term contributes nothing instead of failing the sweep.
func (c *Client) DiasporaEvents(ctx context.Context) ([]models.EventRecord, error) {
	startDateTime := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	terms := searchTerms()

	var mu sync.Mutex
	var all []models.EventRecord

	var wg sync.WaitGroup
	for _, term := range terms {
		wg.Add(1)
		go func(term string) {
			defer wg.Done()
			events, err := c.searchTerm(ctx, term, startDateTime)
			if err != nil {
				c.log.Warn().Err(err).Str("term", term).Msg("Event term search failed, skipping")
				return
			}
			mu.Lock()
			all = append(all, events...)
			mu.Unlock()
		}(term)
	}
	wg.Wait()

	if len(all) == 0 {
		c.log.Info().Msg("Term grid found nothing, running classification fallback")
		fallback, err := c.classificationFallback(ctx, startDateTime)
		if err != nil {
			c.log.Warn().Err(err).Msg("Classification fallback failed")
		}
		all = fallback
	}

	if len(all) == 0 {
		return nil, ErrNoEvents
	}

	unique := dedupe(all)
	filtered := filterRelevant(unique)
	if len(filtered) == 0 {
		// Relevance filter can be too aggressive when providers omit
		// attraction metadata. Fall back to the deduplicated set.
		filtered = unique
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].StartTime().Before(filtered[j].StartTime())
	})

	topN := c.cfg.TopN
	if topN > 0 && len(filtered) > topN {
		filtered = filtered[:topN]
	}

	c.log.Info().Int("events", len(filtered)).Msg("Event aggregation complete")
	return filtered, nil
}

// Search runs a single keyword query with passthrough filters for the
// interactive search endpoint.
func (c *Client) Search(ctx context.Context, req SearchQuery) ([]models.EventRecord, error) {
	if req.Size <= 0 {
		req.Size = c.cfg.PageSize
	}

	params := url.Values{}
	params.Set("keyword", req.Keyword)
	params.Set("size", strconv.Itoa(req.Size))
	for k, v := range req.Filters {
		params.Set(k, v)
	}

	resp, err := c.fetch(ctx, "search", params)
	if err != nil {
		return nil, err
	}
	if len(resp.Embedded.Events) == 0 {
		return nil, ErrNoEvents
	}

	records := make([]models.EventRecord, 0, len(resp.Embedded.Events))
	for i := range resp.Embedded.Events {
		records = append(records, resp.Embedded.Events[i].toRecord(req.Keyword))
	}
	return records, nil
}

// searchTerm queries one grid term.
func (c *Client) searchTerm(ctx context.Context, term, startDateTime string) ([]models.EventRecord, error) {
	params := url.Values{}
	params.Set("countryCode", "US")
	params.Set("keyword", term)
	params.Set("size", strconv.Itoa(c.cfg.PageSize))
	params.Set("sort", "date,asc")
	params.Set("startDateTime", startDateTime)
	params.Set("locale", "en-us")

	resp, err := c.fetch(ctx, "term", params)
	if err != nil {
		return nil, err
	}

	records := make([]models.EventRecord, 0, len(resp.Embedded.Events))
	for i := range resp.Embedded.Events {
		records = append(records, resp.Embedded.Events[i].toRecord(term))
	}
	return records, nil
}

// classificationFallback runs the broad Music-classification search
// used when every grid term comes back empty.
func (c *Client) classificationFallback(ctx context.Context, startDateTime string) ([]models.EventRecord, error) {
	params := url.Values{}
	params.Set("countryCode", "US")
	params.Set("classificationName", "Music")
	params.Set("keyword", "afrobeat")
	params.Set("size", strconv.Itoa(c.cfg.PageSize))
	params.Set("sort", "date,asc")
	params.Set("startDateTime", startDateTime)

	resp, err := c.fetch(ctx, "fallback", params)
	if err != nil {
		return nil, err
	}

	records := make([]models.EventRecord, 0, len(resp.Embedded.Events))
	for i := range resp.Embedded.Events {
		records = append(records, resp.Embedded.Events[i].toRecord("fallback"))
	}
	return records, nil
}

// fetch performs one Discovery request with a bounded HTTP 429 retry
// loop: delays grow as (attempt+1) * RetryDelay, up to MaxRetries
// retries, and waits are context-cancellable.
func (c *Client) fetch(ctx context.Context, operation string, params url.Values) (*tmResponse, error) {
	params.Set("apikey", c.cfg.APIKey)
	reqURL := fmt.Sprintf("%s/events.json?%s", c.cfg.BaseURL, params.Encode())

	var lastErr error
	start := time.Now()

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.RecordProviderRequest("ticketmaster", operation, time.Since(start), err)
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}

		if resp.StatusCode == http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return nil, fmt.Errorf("failed to read response: %w", readErr)
			}
			out := &tmResponse{}
			if err := json.Unmarshal(body, out); err != nil {
				return nil, fmt.Errorf("decode events response: %w", err)
			}
			metrics.RecordProviderRequest("ticketmaster", operation, time.Since(start), nil)
			return out, nil
		}

		resp.Body.Close()

		if resp.StatusCode != http.StatusTooManyRequests || attempt == c.cfg.MaxRetries {
			lastErr = fmt.Errorf("%w: ticketmaster %s returned status %d", ErrProviderUnavailable, operation, resp.StatusCode)
			break
		}

		metrics.RecordProviderRetry("ticketmaster", "rate_limit")
		delay := time.Duration(attempt+1) * c.cfg.RetryDelay

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	metrics.RecordProviderRequest("ticketmaster", operation, time.Since(start), lastErr)
	return nil, lastErr
}

// dedupe keeps one record per event id, last write wins.
func dedupe(events []models.EventRecord) []models.EventRecord {
	seen := make(map[string]int, len(events))
	out := make([]models.EventRecord, 0, len(events))
	for _, e := range events {
		if idx, ok := seen[e.ID]; ok {
			out[idx] = e
			continue
		}
		seen[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}

// filterRelevant keeps events whose combined text mentions any
// diaspora term: name, info, notes, attraction names, and genre.
func filterRelevant(events []models.EventRecord) []models.EventRecord {
	terms := relevanceTerms()
	out := make([]models.EventRecord, 0, len(events))

	for _, e := range events {
		parts := []string{e.Name, e.Info, e.PleaseNote, e.Genre}
		for _, a := range e.Attractions {
			parts = append(parts, a.Name)
		}
		text := lower(strings.Join(parts, " "))

		for _, t := range terms {
			if strings.Contains(text, t) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func lower(s string) string {
	return strings.ToLower(s)
}
