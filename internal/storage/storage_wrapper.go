package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/xltoken-dashboard/internal/metrics"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
)

// StorageWithMetrics wraps a storage implementation with metrics
type StorageWithMetrics struct {
	Storage
	metricsManager *metrics.Manager
}

// NewStorageWithMetrics creates a storage wrapper with metrics
func NewStorageWithMetrics(storage Storage, metricsManager *metrics.Manager) *StorageWithMetrics {
	return &StorageWithMetrics{
		Storage:        storage,
		metricsManager: metricsManager,
	}
}

func (s *StorageWithMetrics) record(operation, table string, start time.Time, err error) {
	if s.metricsManager == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metricsManager.GetPrometheusMetrics().RecordDatabaseOperation(operation, table, status, time.Since(start))
}

// SaveSession saves the session and records metrics
func (s *StorageWithMetrics) SaveSession(ctx context.Context, token string) error {
	start := time.Now()
	err := s.Storage.SaveSession(ctx, token)
	s.record("upsert", "sessions", start, err)
	return err
}

// SaveLogEntries journals entries and records metrics
func (s *StorageWithMetrics) SaveLogEntries(ctx context.Context, entries []models.LogEntry, source string) (int, error) {
	start := time.Now()
	n, err := s.Storage.SaveLogEntries(ctx, entries, source)
	s.record("insert", "log_entries", start, err)
	return n, err
}

// GetLogEntries queries the journal and records metrics
func (s *StorageWithMetrics) GetLogEntries(ctx context.Context, filter models.LogEntryFilter) ([]*JournalEntry, error) {
	start := time.Now()
	entries, err := s.Storage.GetLogEntries(ctx, filter)
	s.record("select", "log_entries", start, err)
	return entries, err
}

// SaveNotification saves a notification and records metrics
func (s *StorageWithMetrics) SaveNotification(ctx context.Context, notification *models.Notification) error {
	start := time.Now()
	err := s.Storage.SaveNotification(ctx, notification)
	s.record("upsert", "notifications", start, err)
	return err
}

// Cleanup prunes old rows and records metrics
func (s *StorageWithMetrics) Cleanup(ctx context.Context, retentionDays int) error {
	start := time.Now()
	err := s.Storage.Cleanup(ctx, retentionDays)
	s.record("delete", "log_entries", start, err)
	return err
}
