// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package places

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gazetteer/internal/models"
)

// EnrichOptions controls a detail enrichment pass.
type EnrichOptions struct {
	// BatchSize is how many detail calls run concurrently within one
	// batch. Batches are processed sequentially.
	BatchSize int

	// MaxReviews caps the reviews kept per record.
	MaxReviews int

	// IncludeAddress requests formatted_address and opening_hours in
	// addition to the base detail fields. Used on the search path.
	IncludeAddress bool
}

// detailsResponse is the wire shape of a place details call.
type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Name             string  `json:"name"`
		Rating           float64 `json:"rating"`
		UserRatingsTotal int     `json:"user_ratings_total"`
		FormattedAddress string  `json:"formatted_address"`
		Reviews          []struct {
			AuthorName              string  `json:"author_name"`
			Rating                  float64 `json:"rating"`
			Text                    string  `json:"text"`
			RelativeTimeDescription string  `json:"relative_time_description"`
			Time                    int64   `json:"time"`
		} `json:"reviews"`
	} `json:"result"`
}

// Enrich attaches ratings and reviews to the given records in place
// of the sparse search results.
//
// Records are processed in sequential batches; within a batch, detail
// calls run concurrently under the shared rate limiter. A failed
// detail call leaves that record as-is and never fails the pass:
// enrichment is best-effort by contract.
func (c *Client) Enrich(ctx context.Context, records []models.PlaceRecord, opts EnrichOptions) []models.PlaceRecord {
	if opts.BatchSize < 1 {
		opts.BatchSize = c.cfg.DetailBatchSize
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 30
	}
	if opts.MaxReviews == 0 {
		opts.MaxReviews = c.cfg.MaxReviews
	}

	out := make([]models.PlaceRecord, len(records))
	copy(out, records)

	for start := 0; start < len(out); start += opts.BatchSize {
		if ctx.Err() != nil {
			break
		}

		end := start + opts.BatchSize
		if end > len(out) {
			end = len(out)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				c.enrichOne(ctx, &out[idx], opts)
			}(i)
		}
		wg.Wait()
	}

	return out
}

// enrichOne fetches and applies details for a single record.
func (c *Client) enrichOne(ctx context.Context, record *models.PlaceRecord, opts EnrichOptions) {
	if record.PlaceID == "" {
		return
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return
	}

	details, err := c.fetchDetails(ctx, record.PlaceID, opts.IncludeAddress)
	if err != nil {
		c.log.Warn().Err(err).Str("place_id", record.PlaceID).Msg("Detail enrichment failed, keeping sparse record")
		return
	}

	if details.Result.Rating > 0 {
		record.Rating = details.Result.Rating
	}
	if details.Result.UserRatingsTotal > 0 {
		record.UserRatingsTotal = details.Result.UserRatingsTotal
	}
	if opts.IncludeAddress && details.Result.FormattedAddress != "" {
		record.Address = details.Result.FormattedAddress
	}

	reviews := details.Result.Reviews
	if opts.MaxReviews > 0 && len(reviews) > opts.MaxReviews {
		reviews = reviews[:opts.MaxReviews]
	}
	if len(reviews) > 0 {
		record.Reviews = make([]models.Review, len(reviews))
		for i, r := range reviews {
			record.Reviews[i] = models.Review{
				Author:       r.AuthorName,
				Rating:       r.Rating,
				Text:         r.Text,
				RelativeTime: r.RelativeTimeDescription,
				Time:         r.Time,
			}
		}
	}
}

// fetchDetails retrieves the detail payload for one place.
func (c *Client) fetchDetails(ctx context.Context, placeID string, includeAddress bool) (*detailsResponse, error) {
	fields := []string{"name", "rating", "user_ratings_total", "reviews"}
	if includeAddress {
		fields = append(fields, "formatted_address", "opening_hours")
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", strings.Join(fields, ","))

	body, err := c.get(ctx, "details", "place/details", params)
	if err != nil {
		return nil, err
	}

	resp := &detailsResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, fmt.Errorf("decode details response: %w", err)
	}
	if err := checkStatus(resp.Status, "details"); err != nil {
		return nil, err
	}
	return resp, nil
}
