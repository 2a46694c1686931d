// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

// Package models defines the data structures shared across Gazetteer:
// place and event records returned by providers, distance-annotated
// query results, and the API response envelope.
package models

import "math"

// coordEpsilon is the tolerance for treating a coordinate as unset.
// Provider payloads without geometry decode to 0,0 which is a real
// location (Gulf of Guinea) but never a legitimate place result here.
const coordEpsilon = 1e-9

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the coordinates are unset (0,0 within epsilon).
func (c Coordinates) IsZero() bool {
	return math.Abs(c.Lat) < coordEpsilon && math.Abs(c.Lng) < coordEpsilon
}

// Review is a single provider review attached to a place during
// detail enrichment. Field names follow the Google Place Details
// response so cached blobs stay compatible with the provider payload.
type Review struct {
	Author       string  `json:"author_name"`
	Rating       float64 `json:"rating"`
	Text         string  `json:"text"`
	RelativeTime string  `json:"relative_time_description,omitempty"`
	Time         int64   `json:"time,omitempty"`
}

// PlaceRecord is one external search result, tagged with the city and
// search term that produced it and optionally enriched with reviews.
//
// PlaceID is the provider's stable external identifier and the
// deduplication key: within one aggregation run each PlaceID appears
// exactly once in the merged set.
type PlaceRecord struct {
	PlaceID          string      `json:"place_id"`
	Name             string      `json:"name"`
	Address          string      `json:"formatted_address,omitempty"`
	Vicinity         string      `json:"vicinity,omitempty"`
	Location         Coordinates `json:"location"`
	Rating           float64     `json:"rating,omitempty"`
	UserRatingsTotal int         `json:"user_ratings_total,omitempty"`
	Types            []string    `json:"types,omitempty"`
	BusinessStatus   string      `json:"business_status,omitempty"`

	// City and SearchTerm record which (city, keyword) task produced
	// this record, for provenance and downstream filtering.
	City       string `json:"city,omitempty"`
	SearchTerm string `json:"search_term,omitempty"`

	Reviews []Review `json:"reviews,omitempty"`
}

// HasCoordinates reports whether the record carries usable geometry.
func (p *PlaceRecord) HasCoordinates() bool {
	return !p.Location.IsZero()
}

// NearbyPlace is a PlaceRecord annotated with the computed distance
// from a query point. Derived per query, never persisted.
type NearbyPlace struct {
	PlaceRecord

	// DistanceKm is the great-circle (haversine) distance from the query point.
	DistanceKm float64 `json:"distance_km"`

	// TravelMinutes is a linear estimate assuming a fixed average speed.
	// It is not routing-accurate.
	TravelMinutes float64 `json:"travel_minutes"`
}

// Result source markers for nearby queries.
const (
	// SourceCache indicates the result set was served from cached data.
	SourceCache = "cache"

	// SourceLive indicates a live provider sweep was required.
	SourceLive = "live"
)

// NearbyResult is the payload of a nearby query: distance-sorted places
// plus a marker recording whether the cache was sufficient.
type NearbyResult struct {
	Source string        `json:"source"`
	Count  int           `json:"count"`
	Places []NearbyPlace `json:"places"`
}
