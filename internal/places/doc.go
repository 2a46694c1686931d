// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

// Package places implements the Google Places and Geocoding provider
// clients: paginated text and nearby search, place detail enrichment,
// and city geocoding. All outbound calls go through a shared circuit
// breaker and a rate-limit-aware HTTP layer with bounded retries.
package places
