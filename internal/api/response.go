// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

// Package api exposes the aggregated place and event data over HTTP.
// Every endpoint answers with the same envelope: success, a human
// message, and either data or error details.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gazetteer/internal/logging"
	"github.com/tomtom215/gazetteer/internal/models"
)

// respondSuccess writes a 200 success envelope.
func respondSuccess(w http.ResponseWriter, message string, data interface{}) {
	respondStatus(w, http.StatusOK, models.NewSuccessResponse(message, data))
}

// respondAccepted writes a 202 success envelope for fire-and-forget
// operations.
func respondAccepted(w http.ResponseWriter, message string) {
	respondStatus(w, http.StatusAccepted, models.NewSuccessResponse(message, nil))
}

// respondError writes an error envelope with the given status.
func respondError(w http.ResponseWriter, status int, message, details string) {
	respondStatus(w, status, models.NewErrorResponse(message, details))
}

func respondStatus(w http.ResponseWriter, status int, body models.APIResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}
