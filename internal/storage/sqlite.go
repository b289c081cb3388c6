// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements Storage interface using SQLite
type SQLiteStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Entry
	migrations []*Migration
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config *StorageConfig) *SQLiteStorage {
	return &SQLiteStorage{
		config:     config,
		logger:     utils.ComponentLogger("storage.sqlite"),
		migrations: GetSQLiteMigrations(),
	}
}

// Connect establishes database connection
func (s *SQLiteStorage) Connect() error {
	// Ensure directory exists
	dir := filepath.Dir(s.config.ConnectionString)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create database directory", err.Error())
		}
	}

	db, err := sql.Open("sqlite", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open SQLite database", err.Error())
	}

	maxConns := s.config.MaxConnections
	if maxConns <= 0 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns/2 + 1)
	db.SetConnMaxLifetime(s.config.MaxIdleTime)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to configure SQLite", pragma+": "+err.Error())
		}
	}

	s.db = db
	s.logger.WithField("path", s.config.ConnectionString).Info("SQLite database connected")

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("SQLite database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLiteStorage) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return s.db.Ping()
}

// Migrate runs database migrations
func (s *SQLiteStorage) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	for _, migration := range s.migrations {
		s.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Debug("Applying migration")

		if _, err := s.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	s.logger.WithField("migrations", len(s.migrations)).Info("Database migrations completed")
	return nil
}

// LoadSession returns the stored auth token, or "" when none is saved
func (s *SQLiteStorage) LoadSession(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, "SELECT token FROM sessions WHERE id = 1").Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", utils.NewAppError(utils.ErrCodeDatabase, "Failed to load session", err.Error())
	}
	return token, nil
}

// SaveSession stores the auth token, replacing any previous one
func (s *SQLiteStorage) SaveSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO sessions (id, token, updated_at) VALUES (1, ?, ?)",
		token, toMillis(time.Now()))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save session", err.Error())
	}
	return nil
}

// ClearSession removes the stored auth token
func (s *SQLiteStorage) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to clear session", err.Error())
	}
	return nil
}

// SaveLogEntries journals entries, skipping ones already stored. It returns
// the number of new rows.
func (s *SQLiteStorage) SaveLogEntries(ctx context.Context, entries []models.LogEntry, source string) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to begin transaction", err.Error())
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO log_entries
		(entry_key, id, username, created_at, raw_created_at, source, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to prepare statement", err.Error())
	}
	defer stmt.Close()

	observed := toMillis(time.Now())
	inserted := 0
	for _, entry := range entries {
		var createdAt interface{}
		if entry.Valid() {
			createdAt = toMillis(entry.CreatedAt)
		}

		result, err := stmt.ExecContext(ctx, entryKey(entry), entry.ID, entry.Username,
			createdAt, entry.RawCreatedAt, source, observed)
		if err != nil {
			return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to save log entry", err.Error())
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to commit transaction", err.Error())
	}

	return inserted, nil
}

// GetLogEntries returns journal entries newest first
func (s *SQLiteStorage) GetLogEntries(ctx context.Context, filter models.LogEntryFilter) ([]*JournalEntry, error) {
	where, args := journalWhere(filter, sqlitePlaceholder, sqliteTime)

	query := `
		SELECT id, username, created_at, raw_created_at, source, observed_at
		FROM log_entries` + where + `
		ORDER BY created_at IS NULL, created_at DESC, observed_at DESC
		LIMIT ? OFFSET ?`
	args = append(args, defaultLimit(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query log entries", err.Error())
	}
	defer rows.Close()

	var entries []*JournalEntry
	for rows.Next() {
		var entry JournalEntry
		var createdAt sql.NullInt64
		var observedAt int64

		if err := rows.Scan(&entry.ID, &entry.Username, &createdAt, &entry.RawCreatedAt,
			&entry.Source, &observedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan log entry", err.Error())
		}

		if createdAt.Valid {
			entry.CreatedAt = fromMillis(createdAt.Int64)
		}
		entry.ObservedAt = fromMillis(observedAt)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// GetLogEntryCount counts journal entries matching filter
func (s *SQLiteStorage) GetLogEntryCount(ctx context.Context, filter models.LogEntryFilter) (int64, error) {
	where, args := journalWhere(filter, sqlitePlaceholder, sqliteTime)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM log_entries"+where, args...).Scan(&count); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count log entries", err.Error())
	}
	return count, nil
}

func sqlitePlaceholder(int) string { return "?" }

func sqliteTime(t time.Time) interface{} { return toMillis(t) }

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
