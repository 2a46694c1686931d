// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package places

import (
	"context"
	"fmt"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gazetteer/internal/models"
)

// geocodeResponse is the wire shape of a geocoding call.
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a free-form city or place name to coordinates.
// Returns ErrNoResults when the provider cannot resolve the name;
// callers map that to a 404.
func (c *Client) Geocode(ctx context.Context, city string) (models.Coordinates, error) {
	params := url.Values{}
	params.Set("address", city)

	body, err := c.get(ctx, "geocode", "geocode", params)
	if err != nil {
		return models.Coordinates{}, err
	}

	resp := &geocodeResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return models.Coordinates{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if err := checkStatus(resp.Status, "geocode"); err != nil {
		return models.Coordinates{}, err
	}
	if len(resp.Results) == 0 {
		return models.Coordinates{}, fmt.Errorf("%w: geocode %q", ErrNoResults, city)
	}

	loc := resp.Results[0].Geometry.Location
	return models.Coordinates{Lat: loc.Lat, Lng: loc.Lng}, nil
}
