package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/homedash/power-monitor/internal/models"
)

// MockStore is a mock implementation of the store.Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Init() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockStore) SaveHeartbeat(record models.HeartbeatRecord) error {
	args := m.Called(record)
	return args.Error(0)
}

func (m *MockStore) GetLastHeartbeat() (*models.HeartbeatRecord, error) {
	args := m.Called()
	record, _ := args.Get(0).(*models.HeartbeatRecord)
	return record, args.Error(1)
}

func (m *MockStore) GetHeartbeatsSince(days int) ([]models.HeartbeatRecord, error) {
	args := m.Called(days)
	records, _ := args.Get(0).([]models.HeartbeatRecord)
	return records, args.Error(1)
}

func (m *MockStore) GetUptimeData(days int) ([]models.UptimePoint, error) {
	args := m.Called(days)
	points, _ := args.Get(0).([]models.UptimePoint)
	return points, args.Error(1)
}

func (m *MockStore) GetStats() (models.StoreStats, error) {
	args := m.Called()
	stats, _ := args.Get(0).(models.StoreStats)
	return stats, args.Error(1)
}
