package store_test

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homedash/power-monitor/internal/models"
	"github.com/homedash/power-monitor/internal/store"
	"github.com/homedash/power-monitor/pkg/file"
)

func newTestStore(t *testing.T, expectedPerDay int) (*store.FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	return store.NewFileStore(path, 30, expectedPerDay, file.NewFileService(), zerolog.Nop()), path
}

func testRecord(receivedAt time.Time, counter int64) models.HeartbeatRecord {
	return models.HeartbeatRecord{
		ID:         fmt.Sprintf("%d-%d", receivedAt.UnixMilli(), counter),
		ReceivedAt: receivedAt,
		Payload: models.HeartbeatPayload{
			Device:    "esp32-casa",
			Counter:   counter,
			UptimeMs:  counter * 10000,
			IP:        "192.168.1.100",
			RSSI:      -45,
			Timestamp: receivedAt.UnixMilli(),
		},
		Status: models.StatusOnline,
	}
}

func TestFileStore_InitIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t, 8640)

	require.NoError(t, s.Init())
	require.NoError(t, s.Init())

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalHeartbeats)
	assert.Equal(t, 0, stats.DBSize)
	assert.Nil(t, stats.LastPing)
}

func TestFileStore_SaveBeforeInitSelfHeals(t *testing.T) {
	s, _ := newTestStore(t, 8640)

	// No Init call at all; the save must create the store itself.
	err := s.SaveHeartbeat(testRecord(time.Now().UTC(), 1))
	require.NoError(t, err)

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalHeartbeats)
	assert.Equal(t, 1, stats.DBSize)
	assert.NotNil(t, stats.LastPing)
}

func TestFileStore_GetLastHeartbeat(t *testing.T) {
	s, _ := newTestStore(t, 8640)
	require.NoError(t, s.Init())

	last, err := s.GetLastHeartbeat()
	require.NoError(t, err)
	assert.Nil(t, last)

	now := time.Now().UTC()
	require.NoError(t, s.SaveHeartbeat(testRecord(now.Add(-time.Minute), 1)))
	require.NoError(t, s.SaveHeartbeat(testRecord(now, 2)))

	last, err = s.GetLastHeartbeat()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(2), last.Payload.Counter)
}

func TestFileStore_RetentionPrunesButCounterIsCumulative(t *testing.T) {
	s, _ := newTestStore(t, 8640)
	require.NoError(t, s.Init())

	now := time.Now().UTC()
	// Three records well outside the 30-day window, two inside.
	require.NoError(t, s.SaveHeartbeat(testRecord(now.AddDate(0, 0, -40), 1)))
	require.NoError(t, s.SaveHeartbeat(testRecord(now.AddDate(0, 0, -35), 2)))
	require.NoError(t, s.SaveHeartbeat(testRecord(now.AddDate(0, 0, -31), 3)))
	require.NoError(t, s.SaveHeartbeat(testRecord(now.Add(-time.Hour), 4)))
	require.NoError(t, s.SaveHeartbeat(testRecord(now, 5)))

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalHeartbeats)
	assert.Equal(t, 2, stats.DBSize)

	records, err := s.GetHeartbeatsSince(30)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFileStore_UptimeData(t *testing.T) {
	// expectedPerDay scaled down so the 50% case needs few records.
	s, _ := newTestStore(t, 10)
	require.NoError(t, s.Init())

	now := time.Now().UTC()
	for i := int64(0); i < 5; i++ {
		require.NoError(t, s.SaveHeartbeat(testRecord(now, i)))
	}

	data, err := s.GetUptimeData(7)
	require.NoError(t, err)
	require.Len(t, data, 7)

	// Ascending by date; today is the last entry.
	for i := 1; i < len(data); i++ {
		assert.Less(t, data[i-1].Label, data[i].Label)
	}
	assert.Equal(t, now.Format("2006-01-02"), data[6].Label)
	assert.Equal(t, "50.0", data[6].Uptime)
	for _, point := range data[:6] {
		assert.Equal(t, "0.0", point.Uptime)
	}
}

func TestFileStore_UptimeDataCapsAtHundredPercent(t *testing.T) {
	s, _ := newTestStore(t, 10)
	require.NoError(t, s.Init())

	now := time.Now().UTC()
	for i := int64(0); i < 15; i++ {
		require.NoError(t, s.SaveHeartbeat(testRecord(now, i)))
	}

	data, err := s.GetUptimeData(7)
	require.NoError(t, err)
	assert.Equal(t, "100.0", data[6].Uptime)
}

func TestFileStore_UptimeDataBeforeInit(t *testing.T) {
	s, _ := newTestStore(t, 10)

	data, err := s.GetUptimeData(7)
	require.NoError(t, err)
	require.Len(t, data, 7)
	for _, point := range data {
		assert.Equal(t, "0.0", point.Uptime)
	}
}

func TestFileStore_SurvivesReload(t *testing.T) {
	s, path := newTestStore(t, 8640)
	require.NoError(t, s.Init())
	require.NoError(t, s.SaveHeartbeat(testRecord(time.Now().UTC(), 7)))

	reloaded := store.NewFileStore(path, 30, 8640, file.NewFileService(), zerolog.Nop())
	require.NoError(t, reloaded.Init())

	stats, err := reloaded.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalHeartbeats)
	assert.Equal(t, 1, stats.DBSize)

	last, err := reloaded.GetLastHeartbeat()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(7), last.Payload.Counter)
}

func TestFileStore_CorruptFileReinitializes(t *testing.T) {
	s, path := newTestStore(t, 8640)

	fileClient := file.NewFileService()
	require.NoError(t, fileClient.WriteFile(path, "{not json"))

	require.NoError(t, s.Init())
	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalHeartbeats)
}
