package store

import (
	"fmt"
	"strconv"
)

// schemaVersion reads the numeric schema version from the meta table.
func (s *Store) schemaVersion() (int, error) {
	var raw string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse schema version %q: %w", raw, err)
	}
	return version, nil
}

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	return s.migrateV2()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		title      TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'pending',
		labels     TEXT,
		channel_id TEXT,
		user_id    TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_channel ON tasks(channel_id);

	CREATE TABLE IF NOT EXISTS issues (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		description TEXT NOT NULL,
		severity    TEXT NOT NULL DEFAULT 'medium',
		detected_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS summaries (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id TEXT,
		summary    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}

	return nil
}

// migrateV2 adds the issue lifecycle columns. Additive only — older rows keep
// their data and come back unresolved.
func (s *Store) migrateV2() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if version >= 2 {
		return nil
	}

	// ALTER TABLE issues ADD COLUMN ... (ignore if already exists)
	_, _ = s.db.Exec(`ALTER TABLE issues ADD COLUMN channel_id TEXT`)
	_, _ = s.db.Exec(`ALTER TABLE issues ADD COLUMN resolved INTEGER NOT NULL DEFAULT 0`)
	_, _ = s.db.Exec(`ALTER TABLE issues ADD COLUMN resolved_at TEXT`)
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_issues_channel ON issues(channel_id)`)
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_issues_resolved ON issues(resolved)`)

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '2')`); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return nil
}
