package api

import "github.com/stacklok/gateway-release-server/internal/events"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// HistoryListResponse is returned by the history listing endpoint
type HistoryListResponse struct {
	Histories []*events.History `json:"histories"`
	Count     int               `json:"count"`
}
