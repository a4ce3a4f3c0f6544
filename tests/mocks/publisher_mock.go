package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of the fanout.Publisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Broadcast(event string, data any) {
	m.Called(event, data)
}
