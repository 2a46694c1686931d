// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/gazetteer/internal/aggregate"
	"github.com/tomtom215/gazetteer/internal/config"
	"github.com/tomtom215/gazetteer/internal/events"
	"github.com/tomtom215/gazetteer/internal/logging"
	"github.com/tomtom215/gazetteer/internal/models"
	"github.com/tomtom215/gazetteer/internal/places"
	"github.com/tomtom215/gazetteer/internal/proximity"
	"github.com/tomtom215/gazetteer/internal/validation"
)

// Aggregator is the engine surface the handlers consume.
type Aggregator interface {
	GetPlaces(ctx context.Context, domain string) ([]models.PlaceRecord, string, error)
	Search(ctx context.Context, domain, city, keyword string) (*aggregate.SearchResult, error)
	Restaurants(ctx context.Context, city string) ([]models.PlaceRecord, string, error)
	Events(ctx context.Context) ([]models.EventRecord, string, error)
	SearchEvents(ctx context.Context, q events.SearchQuery) ([]models.EventRecord, error)
	Refresh(ctx context.Context, domain string) (int, error)
	IsDomain(name string) bool
}

// NearbyFinder answers proximity queries against a domain.
type NearbyFinder interface {
	Nearby(ctx context.Context, domain string, lat, lng float64) (*models.NearbyResult, error)
	NearbyPlace(ctx context.Context, domain, place string) (*models.NearbyResult, error)
}

// Handler holds the dependencies for all API endpoints.
type Handler struct {
	engine    Aggregator
	nearby    NearbyFinder
	cfg       *config.Config
	version   string
	startedAt time.Time
	log       zerolog.Logger

	// refreshTimeout bounds the detached refresh runs spawned by the
	// admin endpoint.
	refreshTimeout time.Duration
}

// NewHandler creates the endpoint handler set.
func NewHandler(engine Aggregator, nearby NearbyFinder, cfg *config.Config, version string) *Handler {
	return &Handler{
		engine:         engine,
		nearby:         nearby,
		cfg:            cfg,
		version:        version,
		startedAt:      time.Now(),
		log:            logging.WithComponent("api"),
		refreshTimeout: cfg.Scheduler.RunTimeout,
	}
}

// Health reports liveness and configured providers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"google":       providerState(h.cfg.Google.Enabled),
		"ticketmaster": providerState(h.cfg.Ticketmaster.Enabled),
	}

	respondSuccess(w, "Service healthy", models.HealthStatus{
		Status:     "ok",
		Version:    h.version,
		Uptime:     time.Since(h.startedAt).Round(time.Second).String(),
		Components: components,
	})
}

func providerState(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// GetPlaces serves the merged set for a place domain, cache-first.
func (h *Handler) GetPlaces(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	if !h.isPlaceDomain(domain) {
		respondError(w, http.StatusNotFound, "Unknown domain: "+domain, "")
		return
	}

	records, source, err := h.engine.GetPlaces(r.Context(), domain)
	if err != nil {
		h.respondMapped(w, err, "Failed to fetch "+domain+" places")
		return
	}

	respondSuccess(w, "Fetched "+domain+" places", map[string]interface{}{
		"source": source,
		"count":  len(records),
		"places": records,
	})
}

type placeSearchParams struct {
	City    string `validate:"required"`
	Keyword string `validate:"required,min=2"`
}

// SearchPlaces runs an interactive city+keyword search in a domain.
func (h *Handler) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	if !h.isPlaceDomain(domain) {
		respondError(w, http.StatusNotFound, "Unknown domain: "+domain, "")
		return
	}

	params := placeSearchParams{
		City:    r.URL.Query().Get("city"),
		Keyword: r.URL.Query().Get("keyword"),
	}
	if verr := validation.Struct(&params); verr != nil {
		respondError(w, http.StatusBadRequest, "Invalid search parameters", verr.Error())
		return
	}

	result, err := h.engine.Search(r.Context(), domain, params.City, params.Keyword)
	if err != nil {
		if errors.Is(err, places.ErrNoResults) {
			respondError(w, http.StatusNotFound, "Could not resolve city: "+params.City, "")
			return
		}
		h.respondMapped(w, err, "Search failed")
		return
	}

	respondSuccess(w, "Search results", result)
}

type nearbyParams struct {
	Lat float64 `validate:"latitude"`
	Lng float64 `validate:"longitude"`
}

// Nearby returns domain places reachable from a point, given either
// coordinates or a free-form place name to geocode.
func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	if !h.isPlaceDomain(domain) {
		respondError(w, http.StatusNotFound, "Unknown domain: "+domain, "")
		return
	}

	q := r.URL.Query()
	if place := q.Get("place"); place != "" {
		result, err := h.nearby.NearbyPlace(r.Context(), domain, place)
		if err != nil {
			if errors.Is(err, places.ErrNoResults) {
				respondError(w, http.StatusNotFound, "Could not resolve place: "+place, "")
				return
			}
			h.respondMapped(w, err, "Nearby lookup failed")
			return
		}
		respondSuccess(w, "Nearby places", result)
		return
	}

	latStr, lngStr := q.Get("lat"), q.Get("lng")
	if latStr == "" || lngStr == "" {
		respondError(w, http.StatusBadRequest, "Provide lat and lng, or a place to geocode", "")
		return
	}

	lat, latErr := strconv.ParseFloat(latStr, 64)
	lng, lngErr := strconv.ParseFloat(lngStr, 64)
	if latErr != nil || lngErr != nil {
		respondError(w, http.StatusBadRequest, "lat and lng must be numbers", "")
		return
	}
	if verr := validation.Struct(&nearbyParams{Lat: lat, Lng: lng}); verr != nil {
		respondError(w, http.StatusBadRequest, "Invalid coordinates", verr.Error())
		return
	}

	result, err := h.nearby.Nearby(r.Context(), domain, lat, lng)
	if err != nil {
		h.respondMapped(w, err, "Nearby lookup failed")
		return
	}
	respondSuccess(w, "Nearby places", result)
}

// Restaurants browses diaspora restaurants in a seeded city.
func (h *Handler) Restaurants(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")

	records, usedCity, err := h.engine.Restaurants(r.Context(), city)
	if err != nil {
		h.respondMapped(w, err, "Failed to fetch restaurants")
		return
	}

	respondSuccess(w, "Restaurants in "+usedCity, map[string]interface{}{
		"city":   usedCity,
		"count":  len(records),
		"places": records,
	})
}

// Events serves the aggregated diaspora event list.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	records, source, err := h.engine.Events(r.Context())
	if err != nil {
		h.respondMapped(w, err, "Failed to fetch events")
		return
	}

	respondSuccess(w, "Upcoming events", map[string]interface{}{
		"source": source,
		"count":  len(records),
		"events": records,
	})
}

type eventSearchRequest struct {
	Keyword string            `json:"keyword" validate:"required,min=2"`
	Size    int               `json:"size" validate:"omitempty,min=1,max=200"`
	Filters map[string]string `json:"filters"`
}

// SearchEvents runs an interactive event search with passthrough
// provider filters.
func (h *Handler) SearchEvents(w http.ResponseWriter, r *http.Request) {
	var req eventSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}
	if verr := validation.Struct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, "Invalid search parameters", verr.Error())
		return
	}

	records, err := h.engine.SearchEvents(r.Context(), events.SearchQuery{
		Keyword: req.Keyword,
		Size:    req.Size,
		Filters: req.Filters,
	})
	if err != nil {
		h.respondMapped(w, err, "Event search failed")
		return
	}

	respondSuccess(w, "Event search results", map[string]interface{}{
		"count":  len(records),
		"events": records,
	})
}

// AdminRefresh triggers a domain refresh in the background and answers
// immediately with 202.
func (h *Handler) AdminRefresh(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	if !h.engine.IsDomain(domain) {
		respondError(w, http.StatusNotFound, "Unknown domain: "+domain, "")
		return
	}

	// Detached from the request context: the refresh outlives the
	// response on purpose.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.refreshTimeout)
		defer cancel()

		count, err := h.engine.Refresh(ctx, domain)
		if err != nil {
			h.log.Error().Err(err).Str("domain", domain).Msg("Manual refresh failed")
			return
		}
		h.log.Info().Str("domain", domain).Int("records", count).Msg("Manual refresh complete")
	}()

	respondAccepted(w, "Refresh started for "+domain)
}

// isPlaceDomain accepts the place domains but not events, which has
// its own endpoints.
func (h *Handler) isPlaceDomain(domain string) bool {
	return domain != aggregate.DomainEvents && h.engine.IsDomain(domain)
}

// respondMapped translates sentinel errors into HTTP statuses.
func (h *Handler) respondMapped(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, aggregate.ErrUnknownDomain),
		errors.Is(err, aggregate.ErrNoPlaces),
		errors.Is(err, aggregate.ErrCityNotSupported),
		errors.Is(err, events.ErrNoEvents),
		errors.Is(err, proximity.ErrNoneNearby):
		respondError(w, http.StatusNotFound, message, err.Error())
	case errors.Is(err, places.ErrProviderUnavailable),
		errors.Is(err, events.ErrProviderUnavailable):
		h.log.Error().Err(err).Msg("Provider unavailable")
		respondError(w, http.StatusBadGateway, message, "upstream provider unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, message, "request timed out")
	default:
		h.log.Error().Err(err).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, message, "")
	}
}
