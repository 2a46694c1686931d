// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package places

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gazetteer/internal/models"
)

// SearchRequest describes one provider search: either a text query or
// a nearby sweep around coordinates, plus the provenance tags applied
// to every returned record.
type SearchRequest struct {
	// Query is the text-search query (TextSearch only).
	Query string

	// Lat/Lng center the search (required for NearbySearch, optional
	// location bias for TextSearch).
	Lat, Lng     float64
	HasLocation  bool
	RadiusMeters int

	// Type and Keyword filter nearby searches.
	Type    string
	Keyword string

	// City and SearchTerm are stamped onto every result record.
	City       string
	SearchTerm string

	// MaxResults caps the accumulated record count across pages.
	// Zero means a single page.
	MaxResults int
}

// searchResponse is the wire shape of textsearch/nearbysearch pages.
type searchResponse struct {
	Status        string        `json:"status"`
	NextPageToken string        `json:"next_page_token"`
	Results       []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Vicinity         string   `json:"vicinity"`
	Rating           float64  `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	Types            []string `json:"types"`
	BusinessStatus   string   `json:"business_status"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// toRecord converts a wire result into a tagged PlaceRecord.
func (r *placeResult) toRecord(city, searchTerm string) models.PlaceRecord {
	return models.PlaceRecord{
		PlaceID:          r.PlaceID,
		Name:             r.Name,
		Address:          r.FormattedAddress,
		Vicinity:         r.Vicinity,
		Location:         models.Coordinates{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		Rating:           r.Rating,
		UserRatingsTotal: r.UserRatingsTotal,
		Types:            r.Types,
		BusinessStatus:   r.BusinessStatus,
		City:             city,
		SearchTerm:       searchTerm,
	}
}

// TextSearch runs a paginated text search and returns tagged records.
//
// Pages are fetched strictly sequentially: each next_page_token needs
// a settle delay before the provider accepts it. On a mid-pagination
// failure the records accumulated so far are returned alongside the
// error, so a partially fetched task still contributes results.
func (c *Client) TextSearch(ctx context.Context, req SearchRequest) ([]models.PlaceRecord, error) {
	params := url.Values{}
	params.Set("query", req.Query)
	if req.Type != "" {
		params.Set("type", req.Type)
	}
	if req.HasLocation {
		params.Set("location", formatLatLng(req.Lat, req.Lng))
		if req.RadiusMeters > 0 {
			params.Set("radius", strconv.Itoa(req.RadiusMeters))
		}
	}
	return c.search(ctx, "textsearch", params, req)
}

// NearbySearch runs a paginated nearby search around a point.
func (c *Client) NearbySearch(ctx context.Context, req SearchRequest) ([]models.PlaceRecord, error) {
	params := url.Values{}
	params.Set("location", formatLatLng(req.Lat, req.Lng))
	if req.RadiusMeters > 0 {
		params.Set("radius", strconv.Itoa(req.RadiusMeters))
	}
	if req.Type != "" {
		params.Set("type", req.Type)
	}
	if req.Keyword != "" {
		params.Set("keyword", req.Keyword)
	}
	return c.search(ctx, "nearbysearch", params, req)
}

// search drives the shared pagination loop for both endpoints.
func (c *Client) search(ctx context.Context, endpoint string, params url.Values, req SearchRequest) ([]models.PlaceRecord, error) {
	var records []models.PlaceRecord
	pageToken := ""

	for page := 0; ; page++ {
		if pageToken != "" {
			params.Set("pagetoken", pageToken)
		}

		resp, err := c.fetchPage(ctx, endpoint, params)
		if err != nil {
			c.log.Warn().Err(err).
				Str("endpoint", endpoint).
				Str("city", req.City).
				Str("term", req.SearchTerm).
				Int("page", page).
				Int("accumulated", len(records)).
				Msg("Search page failed, keeping accumulated records")
			return records, err
		}

		for i := range resp.Results {
			records = append(records, resp.Results[i].toRecord(req.City, req.SearchTerm))
		}

		if req.MaxResults > 0 && len(records) >= req.MaxResults {
			records = records[:req.MaxResults]
			break
		}
		if resp.NextPageToken == "" || req.MaxResults == 0 {
			break
		}

		// A fresh next_page_token is not valid immediately on the
		// provider side. Wait before following it.
		if err := c.settle(ctx); err != nil {
			return records, err
		}
		pageToken = resp.NextPageToken
	}

	c.log.Debug().
		Str("endpoint", endpoint).
		Str("city", req.City).
		Str("term", req.SearchTerm).
		Int("records", len(records)).
		Msg("Search complete")

	return records, nil
}

// fetchPage retrieves and decodes one result page, retrying a bounded
// number of times on OVER_QUERY_LIMIT.
func (c *Client) fetchPage(ctx context.Context, endpoint string, params url.Values) (*searchResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		// Search lives under the place/ path segment of the Maps API;
		// the bare endpoint name stays as the operation label.
		body, err := c.get(ctx, endpoint, "place/"+endpoint, cloneValues(params))
		if err != nil {
			return nil, err
		}

		resp := &searchResponse{}
		if err := json.Unmarshal(body, resp); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
		}

		err = checkStatus(resp.Status, endpoint)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, errRateLimited) {
			return nil, err
		}
		lastErr = err

		if attempt < c.cfg.RetryAttempts {
			delay := c.cfg.RetryDelay * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
}

// settle waits out the page-token settle delay, honoring cancellation.
func (c *Client) settle(ctx context.Context) error {
	if c.cfg.PageSettleDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(c.cfg.PageSettleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func formatLatLng(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}

// cloneValues copies url.Values so retries and pagination don't mutate
// the caller's params.
func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
