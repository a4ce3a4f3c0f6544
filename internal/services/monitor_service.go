package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/homedash/power-monitor/internal/notifier"
	"github.com/homedash/power-monitor/internal/store"
	"github.com/homedash/power-monitor/pkg/metrics"
)

// MonitorStatus is the read-only view of the outage state machine.
type MonitorStatus struct {
	IsOffline    bool    `json:"isOffline"`
	OfflineSince *string `json:"offlineSince"`
	ThresholdMs  int64   `json:"threshold"`
}

// MonitorService watches heartbeat recency and drives edge-triggered
// outage alerting. It only ever reads the store; the outage state is
// process-local and resets on restart, so an outage that straddles a
// restart is re-detected as new and may alert twice.
type MonitorService struct {
	CheckInterval time.Duration
	Threshold     time.Duration
	Store         store.Store
	Notifier      notifier.Notifier
	Logger        zerolog.Logger

	mu           sync.Mutex
	isOffline    bool
	offlineSince *time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitorService initializes a new MonitorService in the optimistic
// powered state.
func NewMonitorService(checkInterval, threshold time.Duration, heartbeatStore store.Store,
	alertNotifier notifier.Notifier, logger zerolog.Logger) *MonitorService {

	return &MonitorService{
		CheckInterval: checkInterval,
		Threshold:     threshold,
		Store:         heartbeatStore,
		Notifier:      alertNotifier,
		Logger:        logger,
	}
}

// Start launches the periodic outage check in a separate goroutine.
func (m *MonitorService) Start() error {
	if m.ctx != nil {
		m.Logger.Warn().Msg("MonitorService is already running")
		return errors.New("monitor service is already running")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runCheckLoop()
	}()

	m.Logger.Info().
		Dur("interval", m.CheckInterval).
		Dur("threshold", m.Threshold).
		Msg("MonitorService started successfully")
	return nil
}

// Stop cancels the periodic check and waits for the loop to exit.
func (m *MonitorService) Stop() error {
	if m.ctx == nil {
		m.Logger.Warn().Msg("MonitorService is not running")
		return errors.New("monitor service is not running")
	}

	m.cancel()
	m.wg.Wait()

	m.ctx = nil
	m.cancel = nil

	m.Logger.Info().Msg("MonitorService stopped successfully")
	return nil
}

// runCheckLoop fires the outage check on a fixed period. Checks run
// sequentially on this goroutine, so ticks never overlap.
func (m *MonitorService) runCheckLoop() {
	ticker := time.NewTicker(m.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkLastHeartbeat()
		case <-m.ctx.Done():
			m.Logger.Info().Msg("MonitorService stopping gracefully")
			return
		}
	}
}

// checkLastHeartbeat compares the age of the most recent record to the
// threshold and flips the outage state on transition edges only. Store
// or notifier failures are logged and never stop the loop.
func (m *MonitorService) checkLastHeartbeat() {
	last, err := m.Store.GetLastHeartbeat()
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to read last heartbeat")
		return
	}
	if last == nil {
		// A silent system at boot is not an outage.
		m.Logger.Debug().Msg("No heartbeat recorded yet, skipping outage check")
		return
	}

	now := time.Now()
	age := now.Sub(last.ReceivedAt)
	m.Logger.Debug().
		Int("minutes_ago", int(math.Round(age.Minutes()))).
		Msg("Checked last heartbeat age")

	m.mu.Lock()
	defer m.mu.Unlock()

	if age > m.Threshold {
		if m.isOffline {
			return
		}
		m.isOffline = true
		m.offlineSince = &now
		metrics.DeviceOffline.Set(1)
		m.Logger.Warn().
			Time("last_heartbeat", last.ReceivedAt).
			Msg("Power outage detected")

		// The state flips even when the alert fails, otherwise an
		// unreachable notifier would wedge the state machine.
		if err := m.Notifier.SendPowerOffAlert(last.ReceivedAt); err != nil {
			m.Logger.Error().Err(err).Msg("Failed to send power-off alert")
			metrics.AlertsSent.WithLabelValues("power_off", "error").Inc()
		} else {
			metrics.AlertsSent.WithLabelValues("power_off", "sent").Inc()
		}
		return
	}

	if m.isOffline {
		downtimeMinutes := int(math.Round(now.Sub(*m.offlineSince).Minutes()))
		m.isOffline = false
		m.offlineSince = nil
		metrics.DeviceOffline.Set(0)
		m.Logger.Info().
			Int("downtime_minutes", downtimeMinutes).
			Msg("Power restored")

		if err := m.Notifier.SendPowerOnAlert(downtimeMinutes); err != nil {
			m.Logger.Error().Err(err).Msg("Failed to send power-restored alert")
			metrics.AlertsSent.WithLabelValues("power_restored", "error").Inc()
		} else {
			metrics.AlertsSent.WithLabelValues("power_restored", "sent").Inc()
		}
	}
}

// Status returns the current outage state. Read-only, no side effects.
func (m *MonitorService) Status() MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := MonitorStatus{
		IsOffline:   m.isOffline,
		ThresholdMs: m.Threshold.Milliseconds(),
	}
	if m.offlineSince != nil {
		formatted := m.offlineSince.UTC().Format(time.RFC3339)
		status.OfflineSince = &formatted
	}
	return status
}
