package store

import (
	"strconv"
	"sync"
	"time"

	"github.com/homedash/power-monitor/internal/models"
	"github.com/homedash/power-monitor/pkg/file"
	"github.com/rs/zerolog"
)

// Store is the contract the ingestion pipeline and the outage monitor
// depend on. Reads never surface raw storage errors; on unrecoverable
// failure they return well-typed empty results.
type Store interface {
	Init() error
	SaveHeartbeat(record models.HeartbeatRecord) error
	GetLastHeartbeat() (*models.HeartbeatRecord, error)
	GetHeartbeatsSince(days int) ([]models.HeartbeatRecord, error)
	GetUptimeData(days int) ([]models.UptimePoint, error)
	GetStats() (models.StoreStats, error)
}

// summary is the rolling summary block persisted next to the records.
type summary struct {
	TotalHeartbeats int64     `json:"totalHeartbeats"`
	StartTime       time.Time `json:"startTime"`
}

// schema is the on-disk layout of the heartbeat database file.
type schema struct {
	Heartbeats []models.HeartbeatRecord `json:"heartbeats"`
	LastPing   *time.Time               `json:"lastPing"`
	Stats      summary                  `json:"stats"`
}

// FileStore persists heartbeat records in a single JSON file, written
// atomically (temp-then-rename) on every mutation. A single writer lock
// serializes mutations; reads may run concurrently with each other.
type FileStore struct {
	path           string
	retentionDays  int
	expectedPerDay int
	fileClient     file.FileOperations
	logger         zerolog.Logger

	mu     sync.RWMutex
	data   *schema
	loaded bool
}

// NewFileStore creates a FileStore backed by the JSON file at path.
func NewFileStore(path string, retentionDays, expectedPerDay int,
	fileClient file.FileOperations, logger zerolog.Logger) *FileStore {

	return &FileStore{
		path:           path,
		retentionDays:  retentionDays,
		expectedPerDay: expectedPerDay,
		fileClient:     fileClient,
		logger:         logger,
	}
}

// Init ensures the underlying file exists with a default empty schema.
// Calling it more than once, or not at all before SaveHeartbeat, is safe.
func (s *FileStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked()
}

func (s *FileStore) initLocked() error {
	if s.loaded {
		return nil
	}

	exists, err := s.fileClient.IsFileExists(s.path)
	if err != nil {
		return err
	}

	if exists {
		var data schema
		if err := s.fileClient.ReadJsonFile(s.path, &data); err != nil {
			// A corrupted file is replaced with a fresh schema rather
			// than wedging every caller behind a parse error.
			s.logger.Error().Err(err).Str("path", s.path).Msg("Heartbeat database unreadable, reinitializing")
		} else {
			s.data = &data
			s.loaded = true
			return nil
		}
	}

	s.data = &schema{
		Heartbeats: []models.HeartbeatRecord{},
		Stats:      summary{StartTime: time.Now().UTC()},
	}
	if err := s.fileClient.WriteJsonFile(s.path, s.data); err != nil {
		s.data = nil
		return err
	}

	s.loaded = true
	s.logger.Info().Str("path", s.path).Msg("Heartbeat database initialized")
	return nil
}

// SaveHeartbeat appends the record, updates the summary counters and
// prunes records that fell out of the retention window. It self-heals
// by initializing the store if Init was never called.
func (s *FileStore) SaveHeartbeat(record models.HeartbeatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.initLocked(); err != nil {
		return err
	}

	s.data.Heartbeats = append(s.data.Heartbeats, record)
	receivedAt := record.ReceivedAt
	s.data.LastPing = &receivedAt
	s.data.Stats.TotalHeartbeats++

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	retained := s.data.Heartbeats[:0]
	for _, h := range s.data.Heartbeats {
		if h.ReceivedAt.After(cutoff) {
			retained = append(retained, h)
		}
	}
	s.data.Heartbeats = retained

	return s.fileClient.WriteJsonFile(s.path, s.data)
}

// GetLastHeartbeat returns the most recently appended retained record,
// or nil if none exist.
func (s *FileStore) GetLastHeartbeat() (*models.HeartbeatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded || len(s.data.Heartbeats) == 0 {
		return nil, nil
	}

	last := s.data.Heartbeats[len(s.data.Heartbeats)-1]
	return &last, nil
}

// GetHeartbeatsSince returns all retained records newer than now minus
// the given number of days, oldest first.
func (s *FileStore) GetHeartbeatsSince(days int) ([]models.HeartbeatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return []models.HeartbeatRecord{}, nil
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	result := []models.HeartbeatRecord{}
	for _, h := range s.data.Heartbeats {
		if h.ReceivedAt.After(cutoff) {
			result = append(result, h)
		}
	}

	return result, nil
}

// GetUptimeData returns one entry per calendar day for the trailing
// days window (today included), each with the share of the expected
// heartbeat count actually seen that day, capped at 100 percent and
// formatted with one decimal. Entries are sorted ascending by date.
func (s *FileStore) GetUptimeData(days int) ([]models.UptimePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dailyCount := make(map[string]int, days)
	labels := make([]string, 0, days)
	now := time.Now().UTC()
	for i := days - 1; i >= 0; i-- {
		label := now.AddDate(0, 0, -i).Format("2006-01-02")
		dailyCount[label] = 0
		labels = append(labels, label)
	}

	if s.loaded {
		for _, h := range s.data.Heartbeats {
			label := h.ReceivedAt.UTC().Format("2006-01-02")
			if _, ok := dailyCount[label]; ok {
				dailyCount[label]++
			}
		}
	}

	result := make([]models.UptimePoint, 0, days)
	for _, label := range labels {
		percentage := float64(dailyCount[label]) / float64(s.expectedPerDay) * 100
		if percentage > 100 {
			percentage = 100
		}
		result = append(result, models.UptimePoint{
			Label:  label,
			Uptime: strconv.FormatFloat(percentage, 'f', 1, 64),
		})
	}

	return result, nil
}

// GetStats returns the cumulative heartbeat counter, the last accepted
// receipt time and the count of currently retained records.
func (s *FileStore) GetStats() (models.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return models.StoreStats{}, nil
	}

	return models.StoreStats{
		TotalHeartbeats: s.data.Stats.TotalHeartbeats,
		LastPing:        s.data.LastPing,
		DBSize:          len(s.data.Heartbeats),
	}, nil
}
