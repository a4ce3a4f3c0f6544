package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homedash/power-monitor/internal/api"
	"github.com/homedash/power-monitor/internal/models"
	"github.com/homedash/power-monitor/internal/services"
	"github.com/homedash/power-monitor/tests/mocks"
)

type stubIngestion struct {
	status services.IngestionStatus
	stats  services.IngestionStats
}

func (s *stubIngestion) Status() services.IngestionStatus { return s.status }
func (s *stubIngestion) Stats() services.IngestionStats   { return s.stats }

type stubMonitor struct {
	status services.MonitorStatus
}

func (s *stubMonitor) Status() services.MonitorStatus { return s.status }

func newTestServer(mockStore *mocks.MockStore, monitor *stubMonitor) *api.Server {
	ingestion := &stubIngestion{
		status: services.IngestionStatus{
			Connected: true,
			State:     services.StateSubscribed,
			Topic:     "casa/power/heartbeat",
		},
	}
	wsHandler := func(w http.ResponseWriter, r *http.Request) {}
	return api.NewServer("127.0.0.1:0", mockStore, ingestion, monitor, wsHandler, zerolog.Nop())
}

func doRequest(t *testing.T, s *api.Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestServer_StatusBeforeFirstHeartbeat(t *testing.T) {
	mockStore := new(mocks.MockStore)
	mockStore.On("GetStats").Return(models.StoreStats{}, nil)
	mockStore.On("GetLastHeartbeat").Return(nil, nil)

	s := newTestServer(mockStore, &stubMonitor{})
	rec, body := doRequest(t, s, "/api/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "online", body["power"])
	assert.Nil(t, body["lastHeartbeat"])
	assert.Nil(t, body["lastHeartbeatData"])
}

func TestServer_StatusDuringOutage(t *testing.T) {
	since := time.Now().UTC().Format(time.RFC3339)
	mockStore := new(mocks.MockStore)
	mockStore.On("GetStats").Return(models.StoreStats{TotalHeartbeats: 12, DBSize: 12}, nil)
	mockStore.On("GetLastHeartbeat").Return(&models.HeartbeatRecord{
		ID:         "1700000000000-42",
		ReceivedAt: time.Now().Add(-time.Hour),
		Payload:    models.HeartbeatPayload{Device: "esp32-casa", Counter: 42},
		Status:     models.StatusOnline,
	}, nil)

	monitor := &stubMonitor{status: services.MonitorStatus{
		IsOffline:    true,
		OfflineSince: &since,
		ThresholdMs:  1200000,
	}}

	s := newTestServer(mockStore, monitor)
	rec, body := doRequest(t, s, "/api/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "offline", body["power"])
	assert.NotNil(t, body["lastHeartbeat"])
}

func TestServer_UptimeChartPeriods(t *testing.T) {
	mockStore := new(mocks.MockStore)
	mockStore.On("GetUptimeData", 7).Return([]models.UptimePoint{{Label: "2026-08-28", Uptime: "50.0"}}, nil)
	mockStore.On("GetUptimeData", 30).Return(make([]models.UptimePoint, 30), nil)

	s := newTestServer(mockStore, &stubMonitor{})

	rec, body := doRequest(t, s, "/api/chart/uptime/week")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].([]any)
	require.Len(t, data, 1)
	point := data[0].(map[string]any)
	assert.Equal(t, "50.0", point["uptime"])

	rec, body = doRequest(t, s, "/api/chart/uptime/month")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"].([]any), 30)
}

func TestServer_HeartbeatsNewestFirstWithLimit(t *testing.T) {
	now := time.Now().UTC()
	records := []models.HeartbeatRecord{}
	for i := int64(1); i <= 5; i++ {
		records = append(records, models.HeartbeatRecord{
			ID:         "r",
			ReceivedAt: now.Add(time.Duration(i) * time.Minute),
			Payload:    models.HeartbeatPayload{Counter: i},
		})
	}

	mockStore := new(mocks.MockStore)
	mockStore.On("GetHeartbeatsSince", 30).Return(records, nil)

	s := newTestServer(mockStore, &stubMonitor{})
	rec, body := doRequest(t, s, "/api/heartbeats?limit=3")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5), body["total"])
	assert.Equal(t, float64(3), body["limit"])

	page := body["heartbeats"].([]any)
	require.Len(t, page, 3)
	first := page[0].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, float64(5), first["counter"])
}

func TestServer_MonitorStatusEndpoint(t *testing.T) {
	mockStore := new(mocks.MockStore)
	s := newTestServer(mockStore, &stubMonitor{status: services.MonitorStatus{ThresholdMs: 1200000}})

	rec, body := doRequest(t, s, "/api/monitor/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["isOffline"])
	assert.Equal(t, float64(1200000), body["threshold"])
}

func TestServer_HealthEndpoint(t *testing.T) {
	mockStore := new(mocks.MockStore)
	s := newTestServer(mockStore, &stubMonitor{})

	rec, body := doRequest(t, s, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	mqtt := body["mqtt"].(map[string]any)
	assert.Equal(t, true, mqtt["connected"])
}

func TestServer_StatsEndpoint(t *testing.T) {
	lastPing := time.Now().UTC()
	mockStore := new(mocks.MockStore)
	mockStore.On("GetStats").Return(models.StoreStats{
		TotalHeartbeats: 99,
		LastPing:        &lastPing,
		DBSize:          42,
	}, nil)

	s := newTestServer(mockStore, &stubMonitor{})
	rec, body := doRequest(t, s, "/api/stats")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(99), body["totalHeartbeats"])
	assert.Equal(t, float64(42), body["dbSize"])
	assert.NotNil(t, body["lastPing"])
}
