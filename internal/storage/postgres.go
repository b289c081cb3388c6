package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// PostgreSQLStorage implements Storage interface using PostgreSQL
type PostgreSQLStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Entry
	migrations []*Migration
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
func NewPostgreSQLStorage(config *StorageConfig) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		config:     config,
		logger:     utils.ComponentLogger("storage.postgres"),
		migrations: GetPostgresMigrations(),
	}
}

// dbError wraps err in an AppError, adding the SQLSTATE name for server errors
func dbError(message string, err error) error {
	details := err.Error()
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		details = fmt.Sprintf("%s (%s): %s", pqErr.Code.Name(), pqErr.Code, pqErr.Message)
	}
	return utils.NewAppError(utils.ErrCodeDatabase, message, details)
}

// Connect establishes database connection
func (p *PostgreSQLStorage) Connect() error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		return dbError("Failed to open PostgreSQL database", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(p.config.MaxConnections)
	db.SetMaxIdleConns(p.config.MaxConnections / 2)
	db.SetConnMaxLifetime(p.config.MaxIdleTime)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return dbError("Failed to ping PostgreSQL database", err)
	}

	p.db = db
	p.logger.WithField("connection", utils.MaskSecret(p.config.ConnectionString)).Info("PostgreSQL database connected")

	return nil
}

// Close closes the database connection
func (p *PostgreSQLStorage) Close() error {
	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		p.logger.Info("PostgreSQL database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgreSQLStorage) Ping() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return p.db.Ping()
}

// Migrate runs database migrations
func (p *PostgreSQLStorage) Migrate() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	for _, migration := range p.migrations {
		p.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Debug("Applying migration")

		if _, err := p.db.Exec(migration.SQL); err != nil {
			return dbError(fmt.Sprintf("Migration %s failed", migration.Version), err)
		}
	}

	p.logger.WithField("migrations", len(p.migrations)).Info("Database migrations completed")
	return nil
}

// LoadSession returns the stored auth token, or "" when none is saved
func (p *PostgreSQLStorage) LoadSession(ctx context.Context) (string, error) {
	var token string
	err := p.db.QueryRowContext(ctx, "SELECT token FROM sessions WHERE id = 1").Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", dbError("Failed to load session", err)
	}
	return token, nil
}

// SaveSession stores the auth token, replacing any previous one
func (p *PostgreSQLStorage) SaveSession(ctx context.Context, token string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at
	`, token, time.Now())
	if err != nil {
		return dbError("Failed to save session", err)
	}
	return nil
}

// ClearSession removes the stored auth token
func (p *PostgreSQLStorage) ClearSession(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return dbError("Failed to clear session", err)
	}
	return nil
}

// SaveLogEntries journals entries, skipping ones already stored
func (p *PostgreSQLStorage) SaveLogEntries(ctx context.Context, entries []models.LogEntry, source string) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, dbError("Failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO log_entries
		(entry_key, id, username, created_at, raw_created_at, source, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entry_key) DO NOTHING
	`)
	if err != nil {
		return 0, dbError("Failed to prepare statement", err)
	}
	defer stmt.Close()

	observed := time.Now()
	inserted := 0
	for _, entry := range entries {
		var createdAt interface{}
		if entry.Valid() {
			createdAt = entry.CreatedAt
		}

		result, err := stmt.ExecContext(ctx, entryKey(entry), entry.ID, entry.Username,
			createdAt, entry.RawCreatedAt, source, observed)
		if err != nil {
			return 0, dbError("Failed to save log entry", err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, dbError("Failed to commit transaction", err)
	}

	return inserted, nil
}

// GetLogEntries returns journal entries newest first
func (p *PostgreSQLStorage) GetLogEntries(ctx context.Context, filter models.LogEntryFilter) ([]*JournalEntry, error) {
	where, args := journalWhere(filter, postgresPlaceholder, postgresTime)

	n := len(args)
	query := `
		SELECT id, username, created_at, raw_created_at, source, observed_at
		FROM log_entries` + where + `
		ORDER BY created_at DESC NULLS LAST, observed_at DESC
		LIMIT ` + postgresPlaceholder(n+1) + ` OFFSET ` + postgresPlaceholder(n+2)
	args = append(args, defaultLimit(filter.Limit), filter.Offset)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("Failed to query log entries", err)
	}
	defer rows.Close()

	var entries []*JournalEntry
	for rows.Next() {
		var entry JournalEntry
		var createdAt pq.NullTime

		if err := rows.Scan(&entry.ID, &entry.Username, &createdAt, &entry.RawCreatedAt,
			&entry.Source, &entry.ObservedAt); err != nil {
			return nil, dbError("Failed to scan log entry", err)
		}

		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time.UTC()
		}
		entry.ObservedAt = entry.ObservedAt.UTC()
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// GetLogEntryCount counts journal entries matching filter
func (p *PostgreSQLStorage) GetLogEntryCount(ctx context.Context, filter models.LogEntryFilter) (int64, error) {
	where, args := journalWhere(filter, postgresPlaceholder, postgresTime)

	var count int64
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM log_entries"+where, args...).Scan(&count); err != nil {
		return 0, dbError("Failed to count log entries", err)
	}
	return count, nil
}

// SaveNotification saves a notification
func (p *PostgreSQLStorage) SaveNotification(ctx context.Context, notification *models.Notification) error {
	dataJSON, err := json.Marshal(notification.Data)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to marshal notification data", err.Error())
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO notifications
		(id, type, entry_id, title, message, data, target, status, attempts, created_at, sent_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, attempts = EXCLUDED.attempts,
			sent_at = EXCLUDED.sent_at, error = EXCLUDED.error
	`,
		notification.ID, string(notification.Type), notification.EntryID, notification.Title,
		notification.Message, string(dataJSON), notification.Target, notification.Status,
		notification.Attempts, notification.CreatedAt, notification.SentAt, notification.Error)
	if err != nil {
		return dbError("Failed to save notification", err)
	}

	return nil
}

// GetPendingNotifications retrieves pending notifications, oldest first
func (p *PostgreSQLStorage) GetPendingNotifications(ctx context.Context, limit int) ([]*models.Notification, error) {
	return p.queryNotifications(ctx, `
		SELECT id, type, entry_id, title, message, data, target, status,
		       attempts, created_at, sent_at, error
		FROM notifications
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`, defaultLimit(limit))
}

// GetNotifications retrieves the most recent notifications
func (p *PostgreSQLStorage) GetNotifications(ctx context.Context, limit int) ([]*models.Notification, error) {
	return p.queryNotifications(ctx, `
		SELECT id, type, entry_id, title, message, data, target, status,
		       attempts, created_at, sent_at, error
		FROM notifications
		ORDER BY created_at DESC
		LIMIT $1
	`, defaultLimit(limit))
}

func (p *PostgreSQLStorage) queryNotifications(ctx context.Context, query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("Failed to query notifications", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var notification models.Notification
		var notificationType string
		var dataJSON []byte
		var sentAt pq.NullTime
		var errorStr sql.NullString

		err := rows.Scan(&notification.ID, &notificationType, &notification.EntryID,
			&notification.Title, &notification.Message, &dataJSON, &notification.Target,
			&notification.Status, &notification.Attempts, &notification.CreatedAt,
			&sentAt, &errorStr)
		if err != nil {
			return nil, dbError("Failed to scan notification", err)
		}

		if err := json.Unmarshal(dataJSON, &notification.Data); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to unmarshal notification data", err.Error())
		}

		notification.Type = models.NotificationType(notificationType)
		if sentAt.Valid {
			notification.SentAt = &sentAt.Time
		}
		if errorStr.Valid {
			notification.Error = &errorStr.String
		}

		notifications = append(notifications, &notification)
	}

	return notifications, rows.Err()
}

// UpdateNotificationStatus updates notification status
func (p *PostgreSQLStorage) UpdateNotificationStatus(ctx context.Context, id string, status string, errorMsg *string) error {
	var sentAt *time.Time
	if status == models.NotificationStatusSent {
		now := time.Now()
		sentAt = &now
	}

	result, err := p.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = $1, error = $2, sent_at = COALESCE($3, sent_at)
		WHERE id = $4
	`, status, errorMsg, sentAt, id)
	if err != nil {
		return dbError("Failed to update notification status", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return utils.NewAppError(utils.ErrCodeNotFound, "Notification not found", id)
	}

	return nil
}

// GetStorageStats returns storage statistics
func (p *PostgreSQLStorage) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{Type: "postgres"}

	err := p.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM log_entries),
			(SELECT COUNT(*) FROM notifications),
			(SELECT COUNT(*) FROM notifications WHERE status = 'pending'),
			(SELECT COUNT(*) > 0 FROM sessions),
			pg_database_size(current_database())
	`).Scan(&stats.TotalLogEntries, &stats.TotalNotifications, &stats.PendingNotifications,
		&stats.HasSession, &stats.DatabaseSize)
	if err != nil {
		return nil, dbError("Failed to get storage stats", err)
	}

	var oldest, latest pq.NullTime
	if err := p.db.QueryRowContext(ctx,
		"SELECT MIN(created_at), MAX(created_at) FROM log_entries").Scan(&oldest, &latest); err != nil {
		return nil, dbError("Failed to get entry range", err)
	}
	if oldest.Valid {
		stats.OldestEntry = &oldest.Time
	}
	if latest.Valid {
		stats.LatestEntry = &latest.Time
	}

	var lastCleanup string
	err = p.db.QueryRowContext(ctx, "SELECT value FROM system_state WHERE key = 'last_cleanup'").Scan(&lastCleanup)
	if err == nil {
		if t, err := time.Parse(time.RFC3339, lastCleanup); err == nil {
			stats.LastCleanup = &t
		}
	}

	return stats, nil
}

// Cleanup removes journal entries and notifications older than the
// retention window
func (p *PostgreSQLStorage) Cleanup(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("Failed to begin cleanup transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM log_entries WHERE observed_at < $1", cutoff)
	if err != nil {
		return dbError("Failed to cleanup old log entries", err)
	}
	entriesDeleted, _ := result.RowsAffected()

	result, err = tx.ExecContext(ctx, "DELETE FROM notifications WHERE created_at < $1", cutoff)
	if err != nil {
		return dbError("Failed to cleanup old notifications", err)
	}
	notificationsDeleted, _ := result.RowsAffected()

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO system_state (key, value, updated_at) VALUES ('last_cleanup', $1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, now.UTC().Format(time.RFC3339), now)
	if err != nil {
		return dbError("Failed to update last cleanup time", err)
	}

	if err := tx.Commit(); err != nil {
		return dbError("Failed to commit cleanup transaction", err)
	}

	p.logger.WithFields(logrus.Fields{
		"entries_deleted":       entriesDeleted,
		"notifications_deleted": notificationsDeleted,
		"retention_days":        retentionDays,
	}).Info("Database cleanup completed")

	return nil
}

// Vacuum optimizes the database
func (p *PostgreSQLStorage) Vacuum() error {
	if _, err := p.db.Exec("VACUUM ANALYZE"); err != nil {
		return dbError("Failed to vacuum database", err)
	}
	return nil
}

func postgresPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func postgresTime(t time.Time) interface{} { return t }
