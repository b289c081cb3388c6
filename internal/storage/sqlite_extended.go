package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// SaveNotification saves a notification
func (s *SQLiteStorage) SaveNotification(ctx context.Context, notification *models.Notification) error {
	dataJSON, err := json.Marshal(notification.Data)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to marshal notification data", err.Error())
	}

	var sentAt interface{}
	if notification.SentAt != nil {
		sentAt = toMillis(*notification.SentAt)
	}

	query := `
		INSERT OR REPLACE INTO notifications
		(id, type, entry_id, title, message, data, target, status, attempts, created_at, sent_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		notification.ID, string(notification.Type), notification.EntryID, notification.Title,
		notification.Message, string(dataJSON), notification.Target, notification.Status,
		notification.Attempts, toMillis(notification.CreatedAt), sentAt, notification.Error)

	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save notification", err.Error())
	}

	return nil
}

// GetPendingNotifications retrieves pending notifications, oldest first
func (s *SQLiteStorage) GetPendingNotifications(ctx context.Context, limit int) ([]*models.Notification, error) {
	return s.queryNotifications(ctx, `
		SELECT id, type, entry_id, title, message, data, target, status,
		       attempts, created_at, sent_at, error
		FROM notifications
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT ?
	`, defaultLimit(limit))
}

// GetNotifications retrieves the most recent notifications
func (s *SQLiteStorage) GetNotifications(ctx context.Context, limit int) ([]*models.Notification, error) {
	return s.queryNotifications(ctx, `
		SELECT id, type, entry_id, title, message, data, target, status,
		       attempts, created_at, sent_at, error
		FROM notifications
		ORDER BY created_at DESC
		LIMIT ?
	`, defaultLimit(limit))
}

func (s *SQLiteStorage) queryNotifications(ctx context.Context, query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query notifications", err.Error())
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var notification models.Notification
		var notificationType, dataJSON string
		var createdAt int64
		var sentAt sql.NullInt64
		var errorStr sql.NullString

		err := rows.Scan(&notification.ID, &notificationType, &notification.EntryID,
			&notification.Title, &notification.Message, &dataJSON, &notification.Target,
			&notification.Status, &notification.Attempts, &createdAt,
			&sentAt, &errorStr)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan notification", err.Error())
		}

		if err := json.Unmarshal([]byte(dataJSON), &notification.Data); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to unmarshal notification data", err.Error())
		}

		notification.Type = models.NotificationType(notificationType)
		notification.CreatedAt = fromMillis(createdAt)
		if sentAt.Valid {
			t := fromMillis(sentAt.Int64)
			notification.SentAt = &t
		}
		if errorStr.Valid {
			notification.Error = &errorStr.String
		}

		notifications = append(notifications, &notification)
	}

	return notifications, rows.Err()
}

// UpdateNotificationStatus updates notification status
func (s *SQLiteStorage) UpdateNotificationStatus(ctx context.Context, id string, status string, errorMsg *string) error {
	var sentAt interface{}
	if status == models.NotificationStatusSent {
		sentAt = toMillis(time.Now())
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = ?, error = ?, sent_at = COALESCE(?, sent_at)
		WHERE id = ?
	`, status, errorMsg, sentAt, id)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to update notification status", err.Error())
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return utils.NewAppError(utils.ErrCodeNotFound, "Notification not found", id)
	}

	return nil
}

// GetStorageStats returns storage statistics
func (s *SQLiteStorage) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{Type: "sqlite"}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM log_entries", &stats.TotalLogEntries},
		{"SELECT COUNT(*) FROM notifications", &stats.TotalNotifications},
		{"SELECT COUNT(*) FROM notifications WHERE status = 'pending'", &stats.PendingNotifications},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get storage stats", err.Error())
		}
	}

	var oldest, latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		"SELECT MIN(created_at), MAX(created_at) FROM log_entries").Scan(&oldest, &latest); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get entry range", err.Error())
	}
	if oldest.Valid {
		t := fromMillis(oldest.Int64)
		stats.OldestEntry = &t
	}
	if latest.Valid {
		t := fromMillis(latest.Int64)
		stats.LatestEntry = &t
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DatabaseSize = pageCount * pageSize
		}
	}

	var lastCleanup string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM system_state WHERE key = 'last_cleanup'").Scan(&lastCleanup)
	if err == nil {
		if t, err := time.Parse(time.RFC3339, lastCleanup); err == nil {
			stats.LastCleanup = &t
		}
	}

	var sessions int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&sessions); err == nil {
		stats.HasSession = sessions > 0
	}

	return stats, nil
}

// Cleanup removes journal entries and notifications older than the
// retention window, measured by when they were observed.
func (s *SQLiteStorage) Cleanup(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}

	cutoff := toMillis(time.Now().AddDate(0, 0, -retentionDays))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to begin cleanup transaction", err.Error())
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM log_entries WHERE observed_at < ?", cutoff)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to cleanup old log entries", err.Error())
	}
	entriesDeleted, _ := result.RowsAffected()

	result, err = tx.ExecContext(ctx, "DELETE FROM notifications WHERE created_at < ?", cutoff)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to cleanup old notifications", err.Error())
	}
	notificationsDeleted, _ := result.RowsAffected()

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO system_state (key, value, updated_at) VALUES ('last_cleanup', ?, ?)",
		now.UTC().Format(time.RFC3339), toMillis(now))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to update last cleanup time", err.Error())
	}

	if err := tx.Commit(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to commit cleanup transaction", err.Error())
	}

	s.logger.WithFields(logrus.Fields{
		"entries_deleted":       entriesDeleted,
		"notifications_deleted": notificationsDeleted,
		"retention_days":        retentionDays,
	}).Info("Database cleanup completed")

	return nil
}

// Vacuum optimizes the database
func (s *SQLiteStorage) Vacuum() error {
	s.logger.Info("Starting database vacuum")

	if _, err := s.db.Exec("VACUUM"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to vacuum database", err.Error())
	}

	s.logger.Info("Database vacuum completed")
	return nil
}
