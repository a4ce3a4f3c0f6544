package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock implementation of the notifier.Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendPowerOffAlert(lastHeartbeat time.Time) error {
	args := m.Called(lastHeartbeat)
	return args.Error(0)
}

func (m *MockNotifier) SendPowerOnAlert(downtimeMinutes int) error {
	args := m.Called(downtimeMinutes)
	return args.Error(0)
}
