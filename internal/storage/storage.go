// File: internal/storage/storage.go
package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
)

// Storage defines the interface for dashboard persistence: the auth session,
// the journal of observed log entries, and webhook delivery records.
type Storage interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Session operations
	LoadSession(ctx context.Context) (string, error)
	SaveSession(ctx context.Context, token string) error
	ClearSession(ctx context.Context) error

	// Journal operations
	SaveLogEntries(ctx context.Context, entries []models.LogEntry, source string) (int, error)
	GetLogEntries(ctx context.Context, filter models.LogEntryFilter) ([]*JournalEntry, error)
	GetLogEntryCount(ctx context.Context, filter models.LogEntryFilter) (int64, error)

	// Notification operations
	SaveNotification(ctx context.Context, notification *models.Notification) error
	GetPendingNotifications(ctx context.Context, limit int) ([]*models.Notification, error)
	UpdateNotificationStatus(ctx context.Context, id string, status string, errorMsg *string) error
	GetNotifications(ctx context.Context, limit int) ([]*models.Notification, error)

	// Statistics and monitoring
	GetStorageStats(ctx context.Context) (*StorageStats, error)

	// Maintenance operations
	Cleanup(ctx context.Context, retentionDays int) error
	Vacuum() error
}

// Journal sources
const (
	SourceInitial  = "initial"
	SourceRealtime = "realtime"
	SourcePoll     = "poll"
	SourceDemo     = "demo"
)

// JournalEntry is a log entry as archived, with where and when it was seen
type JournalEntry struct {
	models.LogEntry
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observed_at"`
}

// MarshalJSON flattens the entry; the embedded LogEntry marshaler would
// otherwise hide Source and ObservedAt.
func (j JournalEntry) MarshalJSON() ([]byte, error) {
	var createdAt interface{} = j.CreatedAt
	if !j.Valid() {
		createdAt = j.RawCreatedAt
	}
	return json.Marshal(struct {
		ID         string      `json:"id"`
		Username   string      `json:"username"`
		CreatedAt  interface{} `json:"createdAt"`
		Source     string      `json:"source"`
		ObservedAt time.Time   `json:"observed_at"`
	}{j.ID, j.Username, createdAt, j.Source, j.ObservedAt})
}

// StorageStats provides storage statistics
type StorageStats struct {
	Type                 string     `json:"type"`
	TotalLogEntries      int64      `json:"total_log_entries"`
	TotalNotifications   int64      `json:"total_notifications"`
	PendingNotifications int64      `json:"pending_notifications"`
	OldestEntry          *time.Time `json:"oldest_entry,omitempty"`
	LatestEntry          *time.Time `json:"latest_entry,omitempty"`
	DatabaseSize         int64      `json:"database_size_bytes"`
	LastCleanup          *time.Time `json:"last_cleanup,omitempty"`
	HasSession           bool       `json:"has_session"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
	RetentionDays    int           `json:"retention_days"`
}

// entryKey identifies a journal row. Entries without an id fall back to
// username and timestamp so re-fetches do not duplicate them.
func entryKey(entry models.LogEntry) string {
	if entry.ID != "" {
		return entry.ID
	}
	ts := entry.RawCreatedAt
	if entry.Valid() {
		ts = entry.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return "anon:" + entry.Username + "@" + ts
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

// journalWhere builds the WHERE clause for a journal filter. ph renders the
// n-th placeholder and ts converts times to the dialect's column type.
func journalWhere(filter models.LogEntryFilter, ph func(n int) string, ts func(time.Time) interface{}) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.Username != nil && *filter.Username != "" {
		args = append(args, *filter.Username)
		conds = append(conds, "username = "+ph(len(args)))
	}
	if filter.From != nil {
		args = append(args, ts(*filter.From))
		conds = append(conds, "created_at >= "+ph(len(args)))
	}
	if filter.To != nil {
		args = append(args, ts(*filter.To))
		conds = append(conds, "created_at < "+ph(len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
