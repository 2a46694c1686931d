// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package aggregate

import (
	"github.com/tomtom215/gazetteer/internal/config"
	"github.com/tomtom215/gazetteer/internal/models"
)

// Domain names double as cache names: each domain persists to exactly
// one named blob.
const (
	DomainWorship    = "worship"
	DomainCatering   = "catering"
	DomainRealEstate = "realestate"
	DomainEvents     = "events"
)

// DomainConfig describes one text-search-seeded aggregation domain:
// the city and keyword grids crossed into search tasks, the provider
// type filter, and the accumulated result cap.
type DomainConfig struct {
	Name     string
	Cities   []string
	Keywords []string
	Type     string
	Cap      int
}

// usCities is the default metro grid for aggregation sweeps.
var usCities = []string{
	"New York", "Los Angeles", "Chicago", "Houston", "Atlanta", "Washington DC",
	"Dallas", "Seattle", "San Francisco", "Minneapolis", "Philadelphia",
	"Boston", "Miami", "Denver", "Phoenix", "Las Vegas",
}

// worshipCities extends the default grid for the worship sweep, which
// casts the widest net of the three place domains.
var worshipCities = append(append([]string{}, usCities...),
	"San Diego", "Orlando", "Baltimore", "Charlotte", "Austin",
	"Detroit", "Newark", "St. Louis", "Tampa", "Raleigh",
)

var worshipKeywords = []string{
	"African church",
	"African worship",
	"African worship center",
	"African christian church",
	"African Pentecostal church",
	"Redeemed Christian Church of God RCCG",
	"Mountain of Fire and Miracles Ministries MFM",
	"Living Faith Church Winners Chapel",
	"Christ Embassy Believers LoveWorld",
	"Deeper Life Bible Church",
	"The Synagogue Church of All Nations SCOAN",
	"Salvation Ministries",
	"House on the Rock Church",
	"The Lord's Chosen Charismatic Revival Movement",
	"Daystar Christian Centre",
	"Commonwealth of Zion Assembly COZA",
	"Dunamis International Gospel Centre",
	"The Elevation Church",
	"Citadel Global Community Church",
	"Nigerian church",
	"Ghanaian church",
	"Congolese church",
	"Eritrean church",
	"Ethiopian church",
}

var cateringKeywords = []string{
	"african catering",
	"nigerian catering",
	"ghanaian catering",
	"ethiopian catering",
	"cameroonian catering",
	"kenyan catering",
	"senegalese catering",
	"african food service",
	"african restaurant catering",
	"diaspora catering",
}

var realEstateKeywords = []string{
	"african real estate agency",
	"nigerian realtor",
	"ghanaian real estate agent",
	"ethiopian real estate agent",
	"african property management",
	"diaspora real estate",
	"african housing services",
	"african mortgage broker",
}

// SeedCity is a fixed city with known coordinates for nearby-seeded
// browsing. Restaurant queries only accept cities from this list.
type SeedCity struct {
	Name   string
	Coords models.Coordinates
}

// RestaurantCities is the fixed seeded city list for restaurant
// browsing. Unknown cities are rejected; an absent city picks one of
// these at random.
var RestaurantCities = []SeedCity{
	{Name: "New York", Coords: models.Coordinates{Lat: 40.7128, Lng: -74.0060}},
	{Name: "Los Angeles", Coords: models.Coordinates{Lat: 34.0522, Lng: -118.2437}},
	{Name: "London", Coords: models.Coordinates{Lat: 51.5074, Lng: -0.1278}},
	{Name: "Toronto", Coords: models.Coordinates{Lat: 43.6532, Lng: -79.3832}},
	{Name: "Sydney", Coords: models.Coordinates{Lat: -33.8688, Lng: 151.2093}},
	{Name: "Lagos", Coords: models.Coordinates{Lat: 6.5244, Lng: 3.3792}},
	{Name: "Nairobi", Coords: models.Coordinates{Lat: -1.2921, Lng: 36.8219}},
	{Name: "Cape Town", Coords: models.Coordinates{Lat: -33.9249, Lng: 18.4241}},
	{Name: "Accra", Coords: models.Coordinates{Lat: 5.6037, Lng: -0.1870}},
}

// DomainConfigs returns the text-search-seeded domains with caps
// applied from configuration.
func DomainConfigs(cfg config.AggregateConfig) map[string]DomainConfig {
	return map[string]DomainConfig{
		DomainWorship: {
			Name:     DomainWorship,
			Cities:   worshipCities,
			Keywords: worshipKeywords,
			Type:     "church",
			Cap:      cfg.WorshipCap,
		},
		DomainCatering: {
			Name:     DomainCatering,
			Cities:   usCities,
			Keywords: cateringKeywords,
			Type:     "restaurant",
			Cap:      cfg.CateringCap,
		},
		DomainRealEstate: {
			Name:     DomainRealEstate,
			Cities:   usCities,
			Keywords: realEstateKeywords,
			Type:     "real_estate_agency",
			Cap:      cfg.RealEstateCap,
		},
	}
}
