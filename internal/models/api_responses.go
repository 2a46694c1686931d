// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package models

// APIResponse is the uniform envelope for every JSON endpoint.
//
// Success responses carry the payload in Data:
//
//	{"success": true, "message": "Places fetched successfully", "data": [...]}
//
// Error responses omit Data and may carry operator-facing detail:
//
//	{"success": false, "message": "City could not be resolved", "details": "..."}
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Details string      `json:"details,omitempty"`
}

// NewSuccessResponse creates a success envelope with the given payload.
func NewSuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse creates a failure envelope. details may be empty.
func NewErrorResponse(message, details string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
		Details: details,
	}
}

// HealthStatus is the payload of the health endpoint.
type HealthStatus struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Uptime     string            `json:"uptime"`
	Components map[string]string `json:"components,omitempty"`
}
