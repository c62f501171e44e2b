package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/gateway-release-server/internal/events"
	"github.com/stacklok/gateway-release-server/internal/versions"
)

func healthRouter(svc Service) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)

	return r
}

func releaseRouter(svc Service) http.Handler {
	r := chi.NewRouter()

	r.Get("/histories/{historyID}/status", historyStatusHandler(svc))
	r.Get("/gateways/{gatewayID}/stages/{stageID}/histories", listHistoriesHandler(svc))

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

func readinessHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CheckReadiness(r.Context()); err != nil {
			writeErrorResponse(w, "release server not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

// historyStatusHandler handles GET /v1/histories/{historyID}/status
func historyStatusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "historyID")
		if !ok {
			return
		}

		report, err := svc.HistoryStatus(r.Context(), id)
		if errors.Is(err, events.ErrHistoryNotFound) {
			writeErrorResponse(w, "history not found", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to evaluate history status", "history_id", id, "error", err)
			writeErrorResponse(w, "failed to evaluate history status", http.StatusInternalServerError)
			return
		}
		writeJSONResponse(w, report, http.StatusOK)
	}
}

// listHistoriesHandler handles GET /v1/gateways/{gatewayID}/stages/{stageID}/histories
func listHistoriesHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gatewayID, ok := pathID(w, r, "gatewayID")
		if !ok {
			return
		}
		stageID, ok := pathID(w, r, "stageID")
		if !ok {
			return
		}

		list, err := svc.ListHistories(r.Context(), gatewayID, stageID)
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to list histories",
				"gateway_id", gatewayID, "stage_id", stageID, "error", err)
			writeErrorResponse(w, "failed to list histories", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []*events.History{}
		}
		writeJSONResponse(w, HistoryListResponse{Histories: list, Count: len(list)}, http.StatusOK)
	}
}

// pathID parses a positive integer URL parameter, writing a 400 when it is not one
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeErrorResponse(w, "invalid "+name+": "+raw, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, ErrorResponse{Error: message}, statusCode)
}
