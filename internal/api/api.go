package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"

	"github.com/homedash/power-monitor/internal/models"
	"github.com/homedash/power-monitor/internal/services"
	"github.com/homedash/power-monitor/internal/store"
)

// IngestionReader is the read-only slice of the ingestion service the
// API exposes.
type IngestionReader interface {
	Status() services.IngestionStatus
	Stats() services.IngestionStats
}

// MonitorReader is the read-only slice of the outage monitor the API
// exposes.
type MonitorReader interface {
	Status() services.MonitorStatus
}

// Server is the read-only HTTP surface: status, statistics, uptime
// aggregates and the websocket upgrade endpoint. All endpoints are pure
// reads and safe to call before the first heartbeat.
type Server struct {
	router    *mux.Router
	srv       *http.Server
	store     store.Store
	ingestion IngestionReader
	monitor   MonitorReader
	wsHandler http.HandlerFunc
	logger    zerolog.Logger
	startTime time.Time
}

// NewServer creates the HTTP server and mounts all routes.
func NewServer(addr string, heartbeatStore store.Store, ingestion IngestionReader,
	monitor MonitorReader, wsHandler http.HandlerFunc, logger zerolog.Logger) *Server {

	router := mux.NewRouter()
	s := &Server{
		router:    router,
		store:     heartbeatStore,
		ingestion: ingestion,
		monitor:   monitor,
		wsHandler: wsHandler,
		logger:    logger,
		startTime: time.Now(),
	}
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	s.setupRoutes()
	return s
}

// Router exposes the mux for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start begins listening for requests without blocking.
func (s *Server) Start() error {
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()
	return nil
}

// Stop shuts the server down, allowing in-flight requests to finish.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.wsHandler).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/heartbeats", s.handleHeartbeats).Methods(http.MethodGet)
	api.HandleFunc("/chart/uptime/{period}", s.handleUptimeChart).Methods(http.MethodGet)
	api.HandleFunc("/mqtt/status", s.handleMQTTStatus).Methods(http.MethodGet)
	api.HandleFunc("/mqtt/stats", s.handleMQTTStats).Methods(http.MethodGet)
	api.HandleFunc("/monitor/status", s.handleMonitorStatus).Methods(http.MethodGet)
}

// handleRoot serves the service banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	stats, _ := s.store.GetStats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Home Dashboard Backend",
		"status":    "running",
		"mqtt":      s.ingestion.Status(),
		"database":  stats,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleHealth reports process liveness, memory usage and the broker
// connection state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	memory := map[string]uint64{}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			memory["rss"] = info.RSS
			memory["vms"] = info.VMS
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"memory":    memory,
		"mqtt":      s.ingestion.Status(),
	})
}

// handleStatus composes the overall system view: outage state, last
// heartbeat and store statistics.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	monitorStatus := s.monitor.Status()
	stats, _ := s.store.GetStats()
	last, _ := s.store.GetLastHeartbeat()

	power := "online"
	if monitorStatus.IsOffline {
		power = "offline"
	}

	var lastTimestamp *string
	var lastData *models.HeartbeatPayload
	if last != nil {
		formatted := last.ReceivedAt.Format(time.RFC3339Nano)
		lastTimestamp = &formatted
		lastData = &last.Payload
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"power":             power,
		"lastHeartbeat":     lastTimestamp,
		"lastHeartbeatData": lastData,
		"database":          stats,
		"monitor":           monitorStatus,
		"mqtt":              s.ingestion.Status(),
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStats serves the store summary plus connection statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, _ := s.store.GetStats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"totalHeartbeats": stats.TotalHeartbeats,
		"lastPing":        stats.LastPing,
		"dbSize":          stats.DBSize,
		"mqtt":            s.ingestion.Stats(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// handleHeartbeats returns recent retained records, newest first.
func (s *Server) handleHeartbeats(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, _ := s.store.GetHeartbeatsSince(30)
	total := len(records)

	// Newest first, capped at the requested limit.
	page := make([]models.HeartbeatRecord, 0, limit)
	for i := len(records) - 1; i >= 0 && len(page) < limit; i-- {
		page = append(page, records[i])
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"heartbeats": page,
		"total":      total,
		"limit":      limit,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// handleUptimeChart serves per-day uptime percentages for the bar chart.
func (s *Server) handleUptimeChart(w http.ResponseWriter, r *http.Request) {
	period := mux.Vars(r)["period"]
	days := 7
	if period == "month" {
		days = 30
	}

	data, err := s.store.GetUptimeData(days)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute uptime data")
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Failed to fetch chart data",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func (s *Server) handleMQTTStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ingestion.Status())
}

func (s *Server) handleMQTTStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ingestion.Stats())
}

func (s *Server) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.Status())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// Addr formats a host/port pair for the server constructor.
func Addr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
