// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package places

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/gazetteer/internal/config"
	"github.com/tomtom215/gazetteer/internal/logging"
	"github.com/tomtom215/gazetteer/internal/metrics"
	"github.com/tomtom215/gazetteer/internal/models"
)

var (
	// ErrProviderUnavailable indicates the provider could not be
	// reached or refused the request after all retries.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrNoResults indicates a query resolved to nothing.
	ErrNoResults = errors.New("no results")

	// errRateLimited is the internal marker for a retryable
	// OVER_QUERY_LIMIT provider status.
	errRateLimited = errors.New("provider rate limited")
)

// Searcher is the external search surface consumed by the engine.
type Searcher interface {
	TextSearch(ctx context.Context, req SearchRequest) ([]models.PlaceRecord, error)
	NearbySearch(ctx context.Context, req SearchRequest) ([]models.PlaceRecord, error)
}

// Enricher attaches details and reviews to search results.
type Enricher interface {
	Enrich(ctx context.Context, records []models.PlaceRecord, opts EnrichOptions) []models.PlaceRecord
}

// Geocoder resolves a city name to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, city string) (models.Coordinates, error)
}

// Client talks to the Google Maps web APIs. It implements Searcher,
// Enricher and Geocoder so callers can depend on the narrow interface
// they need.
//
// The circuit breaker uses real time (via sony/gobreaker) for its
// interval and timeout calculations. Tests should stub the HTTP layer,
// not the breaker.
type Client struct {
	cfg        config.GoogleConfig
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[[]byte]
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a Google provider client.
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewClient(cfg config.GoogleConfig) *Client {
	cbName := "google-maps"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	qps := cfg.DetailQPS
	if qps <= 0 {
		qps = 10
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cb:         cb,
		limiter:    rate.NewLimiter(rate.Limit(qps), int(qps)),
		log:        logging.WithComponent("places"),
	}
}

// get performs a breaker-protected GET against one of the Maps API
// endpoints and returns the raw response body.
func (c *Client) get(ctx context.Context, operation, endpoint string, params url.Values) ([]byte, error) {
	params.Set("key", c.cfg.APIKey)
	reqURL := fmt.Sprintf("%s/%s/json?%s", c.cfg.BaseURL, endpoint, params.Encode())

	start := time.Now()
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.doRequestWithRateLimit(ctx, reqURL, operation)
	})
	metrics.RecordProviderRequest("google", operation, time.Since(start), err)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open for google %s", ErrProviderUnavailable, operation)
		}
		return nil, err
	}
	return body, nil
}

// doRequestWithRateLimit performs an HTTP request with automatic rate
// limit handling. Implements exponential backoff for HTTP 429 and 5xx
// responses (1s, 2s, 4s...). The context is used for cancellation
// during backoff waits.
func (c *Client) doRequestWithRateLimit(ctx context.Context, reqURL, operation string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}

		if resp.StatusCode == http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return nil, fmt.Errorf("failed to read response: %w", readErr)
			}
			return body, nil
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		retryAfter := resp.Header.Get("Retry-After")
		resp.Body.Close()

		if !retryable {
			return nil, fmt.Errorf("%w: google %s returned status %d", ErrProviderUnavailable, operation, resp.StatusCode)
		}

		if attempt == c.cfg.RetryAttempts {
			lastErr = fmt.Errorf("%w: google %s still failing after %d retries (status %d)",
				ErrProviderUnavailable, operation, c.cfg.RetryAttempts, resp.StatusCode)
			break
		}

		metrics.RecordProviderRetry("google", retryReason(resp.StatusCode))

		// Exponential backoff: 1s, 2s, 4s...
		delay := c.cfg.RetryDelay * time.Duration(1<<uint(attempt))

		// Honor Retry-After (RFC 6585) when present
		if retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func retryReason(statusCode int) string {
	if statusCode == http.StatusTooManyRequests {
		return "rate_limit"
	}
	return "server_error"
}

// checkStatus maps a Maps API body status to an error.
// ZERO_RESULTS is not an error at this layer; callers decide whether
// an empty result set matters.
func checkStatus(status, operation string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "OVER_QUERY_LIMIT":
		return fmt.Errorf("%w: google %s", errRateLimited, operation)
	default:
		return fmt.Errorf("%w: google %s returned status %s", ErrProviderUnavailable, operation, status)
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
