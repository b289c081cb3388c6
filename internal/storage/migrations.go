package storage

// Migration represents a database migration
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// GetSQLiteMigrations returns SQLite migration scripts. Timestamps are stored
// as unix milliseconds.
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sessions (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					token TEXT NOT NULL,
					updated_at INTEGER NOT NULL
				);
			`,
		},
		{
			Version:     "002",
			Description: "Create log_entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS log_entries (
					entry_key TEXT PRIMARY KEY,
					id TEXT NOT NULL DEFAULT '',
					username TEXT NOT NULL DEFAULT '',
					created_at INTEGER,
					raw_created_at TEXT NOT NULL DEFAULT '',
					source TEXT NOT NULL,
					observed_at INTEGER NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_log_entries_username ON log_entries(username);
				CREATE INDEX IF NOT EXISTS idx_log_entries_created_at ON log_entries(created_at);
				CREATE INDEX IF NOT EXISTS idx_log_entries_observed_at ON log_entries(observed_at);
			`,
		},
		{
			Version:     "003",
			Description: "Create notifications table",
			SQL: `
				CREATE TABLE IF NOT EXISTS notifications (
					id TEXT PRIMARY KEY,
					type TEXT NOT NULL,
					entry_id TEXT NOT NULL DEFAULT '',
					title TEXT NOT NULL,
					message TEXT NOT NULL,
					data TEXT NOT NULL DEFAULT '{}',
					target TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					attempts INTEGER NOT NULL DEFAULT 0,
					created_at INTEGER NOT NULL,
					sent_at INTEGER,
					error TEXT
				);

				CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
				CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at);
			`,
		},
		{
			Version:     "004",
			Description: "Create system_state table",
			SQL: `
				CREATE TABLE IF NOT EXISTS system_state (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at INTEGER NOT NULL
				);
			`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sessions (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					token TEXT NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL
				);
			`,
		},
		{
			Version:     "002",
			Description: "Create log_entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS log_entries (
					entry_key TEXT PRIMARY KEY,
					id TEXT NOT NULL DEFAULT '',
					username TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ,
					raw_created_at TEXT NOT NULL DEFAULT '',
					source VARCHAR(32) NOT NULL,
					observed_at TIMESTAMPTZ NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_log_entries_username ON log_entries(username);
				CREATE INDEX IF NOT EXISTS idx_log_entries_created_at ON log_entries(created_at);
				CREATE INDEX IF NOT EXISTS idx_log_entries_observed_at ON log_entries(observed_at);
			`,
		},
		{
			Version:     "003",
			Description: "Create notifications table",
			SQL: `
				CREATE TABLE IF NOT EXISTS notifications (
					id VARCHAR(64) PRIMARY KEY,
					type VARCHAR(32) NOT NULL,
					entry_id TEXT NOT NULL DEFAULT '',
					title TEXT NOT NULL,
					message TEXT NOT NULL,
					data JSONB NOT NULL DEFAULT '{}',
					target TEXT NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					attempts INTEGER NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL,
					sent_at TIMESTAMPTZ,
					error TEXT
				);

				CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
				CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at);
			`,
		},
		{
			Version:     "004",
			Description: "Create system_state table",
			SQL: `
				CREATE TABLE IF NOT EXISTS system_state (
					key VARCHAR(100) PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL
				);
			`,
		},
	}
}
