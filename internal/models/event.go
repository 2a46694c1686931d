// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package models

import "time"

// EventImage is one image attached to an event.
type EventImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Ratio  string `json:"ratio,omitempty"`
}

// EventDates carries the start timing of an event. The provider sends
// either a full timestamp or only a local date, so both are retained.
type EventDates struct {
	LocalDate string `json:"local_date,omitempty"`
	DateTime  string `json:"date_time,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

// EventVenue is a venue attached to an event.
type EventVenue struct {
	Name     string      `json:"name"`
	City     string      `json:"city,omitempty"`
	Country  string      `json:"country,omitempty"`
	Address  string      `json:"address,omitempty"`
	Location Coordinates `json:"location"`
}

// EventAttraction is a performing artist or attraction on an event.
type EventAttraction struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EventRecord is one deduplicated event from the discovery provider.
//
// ID is the provider's stable identifier and the deduplication key,
// same contract as PlaceRecord.PlaceID for places.
type EventRecord struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        string            `json:"type,omitempty"`
	URL         string            `json:"url,omitempty"`
	Images      []EventImage      `json:"images,omitempty"`
	Dates       EventDates        `json:"dates"`
	Segment     string            `json:"segment,omitempty"`
	Genre       string            `json:"genre,omitempty"`
	Info        string            `json:"info,omitempty"`
	PleaseNote  string            `json:"please_note,omitempty"`
	Venues      []EventVenue      `json:"venues,omitempty"`
	Attractions []EventAttraction `json:"attractions,omitempty"`

	// SearchTerm records which query term surfaced this event.
	SearchTerm string `json:"search_term,omitempty"`
}

// StartTime parses the event's start into a time.Time for sorting.
// Full timestamps are preferred over bare local dates. Events with no
// parseable start sort last, far-future.
func (e *EventRecord) StartTime() time.Time {
	if e.Dates.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, e.Dates.DateTime); err == nil {
			return t
		}
	}
	if e.Dates.LocalDate != "" {
		if t, err := time.Parse("2006-01-02", e.Dates.LocalDate); err == nil {
			return t
		}
	}
	return time.Unix(1<<40, 0)
}
