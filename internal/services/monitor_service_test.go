package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/homedash/power-monitor/internal/models"
	"github.com/homedash/power-monitor/internal/services"
	"github.com/homedash/power-monitor/tests/mocks"
)

func staleRecord() *models.HeartbeatRecord {
	stale := time.Now().Add(-time.Hour)
	return &models.HeartbeatRecord{
		ID:         "stale",
		ReceivedAt: stale,
		Status:     models.StatusOnline,
	}
}

func freshRecord() *models.HeartbeatRecord {
	return &models.HeartbeatRecord{
		ID:         "fresh",
		ReceivedAt: time.Now(),
		Status:     models.StatusOnline,
	}
}

// TestMonitorService_Start_Success tests the successful start of the MonitorService.
func TestMonitorService_Start_Success(t *testing.T) {
	mockStore := new(mocks.MockStore)
	mockNotifier := new(mocks.MockNotifier)
	logger := zerolog.Nop()

	m := services.NewMonitorService(time.Hour, 20*time.Minute, mockStore, mockNotifier, logger)

	err := m.Start()
	assert.NoError(t, err)

	// Try to start again (should fail)
	err = m.Start()
	assert.Error(t, err)
	assert.Equal(t, "monitor service is already running", err.Error())

	err = m.Stop()
	assert.NoError(t, err)

	// Try to stop again (should fail)
	err = m.Stop()
	assert.Error(t, err)
	assert.Equal(t, "monitor service is not running", err.Error())
}

// TestMonitorService_OfflineAlertIsEdgeTriggered verifies the power-off
// alert fires once on the first tick past the threshold, not on every
// tick while the outage continues.
func TestMonitorService_OfflineAlertIsEdgeTriggered(t *testing.T) {
	mockStore := new(mocks.MockStore)
	mockNotifier := new(mocks.MockNotifier)
	logger := zerolog.Nop()

	mockStore.On("GetLastHeartbeat").Return(staleRecord(), nil)
	mockNotifier.On("SendPowerOffAlert", mock.Anything).Return(nil)

	m := services.NewMonitorService(10*time.Millisecond, 20*time.Minute, mockStore, mockNotifier, logger)
	require.NoError(t, m.Start())

	// Let well over five ticks elapse while the record stays stale.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, m.Stop())

	mockNotifier.AssertNumberOfCalls(t, "SendPowerOffAlert", 1)

	status := m.Status()
	assert.True(t, status.IsOffline)
	assert.NotNil(t, status.OfflineSince)
}

// TestMonitorService_RecoveryAlertReportsDowntime verifies the
// power-restored alert fires once with the downtime in whole minutes
// and that subsequent healthy ticks re-fire neither alert.
func TestMonitorService_RecoveryAlertReportsDowntime(t *testing.T) {
	mockStore := new(mocks.MockStore)
	mockNotifier := new(mocks.MockNotifier)
	logger := zerolog.Nop()

	// Two stale reads open the outage, then the device comes back.
	mockStore.On("GetLastHeartbeat").Return(staleRecord(), nil).Twice()
	mockStore.On("GetLastHeartbeat").Return(freshRecord(), nil)
	mockNotifier.On("SendPowerOffAlert", mock.Anything).Return(nil)
	mockNotifier.On("SendPowerOnAlert", 0).Return(nil)

	m := services.NewMonitorService(10*time.Millisecond, 20*time.Minute, mockStore, mockNotifier, logger)
	require.NoError(t, m.Start())

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, m.Stop())

	mockNotifier.AssertNumberOfCalls(t, "SendPowerOffAlert", 1)
	mockNotifier.AssertNumberOfCalls(t, "SendPowerOnAlert", 1)

	status := m.Status()
	assert.False(t, status.IsOffline)
	assert.Nil(t, status.OfflineSince)
}

// TestMonitorService_NoHeartbeatIsNotAnOutage verifies a silent system
// at boot triggers no state transition and no alert.
func TestMonitorService_NoHeartbeatIsNotAnOutage(t *testing.T) {
	mockStore := new(mocks.MockStore)
	mockNotifier := new(mocks.MockNotifier)
	logger := zerolog.Nop()

	mockStore.On("GetLastHeartbeat").Return(nil, nil)

	m := services.NewMonitorService(10*time.Millisecond, 20*time.Minute, mockStore, mockNotifier, logger)
	require.NoError(t, m.Start())

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, m.Stop())

	mockNotifier.AssertNotCalled(t, "SendPowerOffAlert", mock.Anything)
	mockNotifier.AssertNotCalled(t, "SendPowerOnAlert", mock.Anything)
	assert.False(t, m.Status().IsOffline)
}

// TestMonitorService_StoreErrorDoesNotCrashLoop verifies a failing
// store read is logged and skipped without corrupting the state.
func TestMonitorService_StoreErrorDoesNotCrashLoop(t *testing.T) {
	mockStore := new(mocks.MockStore)
	mockNotifier := new(mocks.MockNotifier)
	logger := zerolog.Nop()

	mockStore.On("GetLastHeartbeat").Return(nil, errors.New("disk gone"))

	m := services.NewMonitorService(10*time.Millisecond, 20*time.Minute, mockStore, mockNotifier, logger)
	require.NoError(t, m.Start())

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, m.Stop())

	mockNotifier.AssertNotCalled(t, "SendPowerOffAlert", mock.Anything)
	assert.False(t, m.Status().IsOffline)
}

// TestMonitorService_AlertFailureStillFlipsState verifies the state
// machine transitions even when the notifier is unreachable.
func TestMonitorService_AlertFailureStillFlipsState(t *testing.T) {
	mockStore := new(mocks.MockStore)
	mockNotifier := new(mocks.MockNotifier)
	logger := zerolog.Nop()

	mockStore.On("GetLastHeartbeat").Return(staleRecord(), nil)
	mockNotifier.On("SendPowerOffAlert", mock.Anything).Return(errors.New("telegram down"))

	m := services.NewMonitorService(10*time.Millisecond, 20*time.Minute, mockStore, mockNotifier, logger)
	require.NoError(t, m.Start())

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, m.Stop())

	// The alert failed, but exactly one attempt was made and the state
	// flipped anyway.
	mockNotifier.AssertNumberOfCalls(t, "SendPowerOffAlert", 1)
	assert.True(t, m.Status().IsOffline)
}

func TestMonitorService_StatusReportsThreshold(t *testing.T) {
	m := services.NewMonitorService(time.Minute, 20*time.Minute, new(mocks.MockStore), new(mocks.MockNotifier), zerolog.Nop())

	status := m.Status()
	assert.False(t, status.IsOffline)
	assert.Nil(t, status.OfflineSince)
	assert.Equal(t, int64(1200000), status.ThresholdMs)
}
