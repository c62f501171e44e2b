package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/gateway-release-server/internal/api"
	"github.com/stacklok/gateway-release-server/internal/api/mocks"
	"github.com/stacklok/gateway-release-server/internal/events"
	"github.com/stacklok/gateway-release-server/internal/status"
)

func serve(t *testing.T, svc api.Service, path string) *httptest.ResponseRecorder {
	t.Helper()
	server := api.NewServer(svc, api.WithMiddlewares(middleware.RequestID, api.LoggingMiddleware))

	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	rr := serve(t, mocks.NewMockService(ctrl), "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response api.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		readiness      error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "ready",
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"ready"`,
		},
		{
			name:           "not ready",
			readiness:      errors.New("worker pool closed"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "worker pool closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockService(ctrl)
			svc.EXPECT().CheckReadiness(gomock.Any()).Return(tt.readiness)

			rr := serve(t, svc, "/readiness")

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	rr := serve(t, mocks.NewMockService(ctrl), "/version")

	assert.Equal(t, http.StatusOK, rr.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Contains(t, response, "version")
	assert.Contains(t, response, "go_version")
}

func TestHistoryStatusEndpoint(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	report := &status.Report{
		HistoryID: 7,
		Kind:      events.KindPublish,
		GatewayID: 1,
		StageID:   10,
		Status:    events.StatusFailure,
		Reason:    status.ReasonStalled,
		Targets: []status.TargetReport{
			{Target: "mgw-1", Status: events.StatusFailure, Reason: status.ReasonStalled, Step: events.StepConvert},
		},
		CreatedAt: created,
	}

	tests := []struct {
		name           string
		path           string
		setup          func(*mocks.MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "report",
			path: "/v1/histories/7/status",
			setup: func(m *mocks.MockService) {
				m.EXPECT().HistoryStatus(gomock.Any(), int64(7)).Return(report, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"reason":"stalled"`,
		},
		{
			name: "unknown history",
			path: "/v1/histories/8/status",
			setup: func(m *mocks.MockService) {
				m.EXPECT().HistoryStatus(gomock.Any(), int64(8)).Return(nil, events.ErrHistoryNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   "history not found",
		},
		{
			name: "store failure",
			path: "/v1/histories/9/status",
			setup: func(m *mocks.MockService) {
				m.EXPECT().HistoryStatus(gomock.Any(), int64(9)).Return(nil, errors.New("connection reset"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "failed to evaluate history status",
		},
		{
			name:           "non numeric id",
			path:           "/v1/histories/abc/status",
			setup:          func(*mocks.MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "invalid historyID",
		},
		{
			name:           "zero id",
			path:           "/v1/histories/0/status",
			setup:          func(*mocks.MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "invalid historyID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockService(ctrl)
			tt.setup(svc)

			rr := serve(t, svc, tt.path)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}

func TestHistoryStatusEndpoint_Body(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().HistoryStatus(gomock.Any(), int64(3)).Return(&status.Report{
		HistoryID: 3,
		Kind:      events.KindRevoke,
		Status:    events.StatusSuccess,
	}, nil)

	rr := serve(t, svc, "/v1/histories/3/status")

	require.Equal(t, http.StatusOK, rr.Code)
	var got status.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, int64(3), got.HistoryID)
	assert.Equal(t, events.KindRevoke, got.Kind)
	assert.Equal(t, events.StatusSuccess, got.Status)
}

func TestListHistoriesEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		path           string
		setup          func(*mocks.MockService)
		expectedStatus int
		expectedCount  int
	}{
		{
			name: "histories",
			path: "/v1/gateways/1/stages/10/histories",
			setup: func(m *mocks.MockService) {
				m.EXPECT().ListHistories(gomock.Any(), int64(1), int64(10)).Return([]*events.History{
					{ID: 2, Kind: events.KindRevoke, GatewayID: 1, StageID: 10},
					{ID: 1, Kind: events.KindPublish, GatewayID: 1, StageID: 10, ResourceVersionID: 100},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name: "empty",
			path: "/v1/gateways/1/stages/11/histories",
			setup: func(m *mocks.MockService) {
				m.EXPECT().ListHistories(gomock.Any(), int64(1), int64(11)).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad stage",
			path:           "/v1/gateways/1/stages/x/histories",
			setup:          func(*mocks.MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "store failure",
			path: "/v1/gateways/1/stages/10/histories",
			setup: func(m *mocks.MockService) {
				m.EXPECT().ListHistories(gomock.Any(), int64(1), int64(10)).Return(nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockService(ctrl)
			tt.setup(svc)

			rr := serve(t, svc, tt.path)

			require.Equal(t, tt.expectedStatus, rr.Code)
			if rr.Code != http.StatusOK {
				return
			}
			var got api.HistoryListResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, tt.expectedCount, got.Count)
			assert.Len(t, got.Histories, tt.expectedCount)
			assert.NotNil(t, got.Histories)
		})
	}
}
