package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/marcus/trellis/internal/logging"
)

// Migration represents a single schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: lists, statuses, priorities, users, tags, tasks",
		SQL:         migration001SQL,
	},
	{
		Version:     2,
		Description: "add custom_fields and custom_field_values",
		SQL:         migration002SQL,
	},
	{
		Version:     3,
		Description: "add task_dependencies with normalized direction",
		SQL:         migration003SQL,
	},
}

const migration001SQL = `
CREATE TABLE lists (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    created_at  DATETIME NOT NULL
);

CREATE TABLE statuses (
    id          TEXT PRIMARY KEY,
    list_id     TEXT NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    position    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE priorities (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    position    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE users (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL
);

CREATE TABLE tags (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE
);

CREATE TABLE tasks (
    id              TEXT PRIMARY KEY,
    list_id         TEXT NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
    title           TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    status_id       TEXT REFERENCES statuses(id) ON DELETE SET NULL,
    priority_id     TEXT REFERENCES priorities(id) ON DELETE SET NULL,
    due_date        TEXT,
    order_position  INTEGER NOT NULL DEFAULT 0,
    archived        INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL,
    updated_at      DATETIME NOT NULL
);

CREATE TABLE task_assignees (
    task_id     TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    PRIMARY KEY (task_id, user_id)
);

CREATE TABLE task_tags (
    task_id     TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    tag_id      TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (task_id, tag_id)
);

CREATE INDEX idx_tasks_list_order ON tasks(list_id, order_position);
CREATE INDEX idx_tasks_due ON tasks(due_date);
CREATE INDEX idx_task_assignees_user ON task_assignees(user_id);
CREATE INDEX idx_task_tags_tag ON task_tags(tag_id);
`

const migration002SQL = `
CREATE TABLE custom_fields (
    id          TEXT PRIMARY KEY,
    list_id     TEXT NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    type        TEXT NOT NULL CHECK (type IN ('text', 'number', 'date', 'dropdown')),
    config      TEXT NOT NULL DEFAULT '{}',
    created_at  DATETIME NOT NULL
);

CREATE TABLE custom_field_values (
    id            TEXT PRIMARY KEY,
    task_id       TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    field_id      TEXT NOT NULL REFERENCES custom_fields(id) ON DELETE CASCADE,
    text_value    TEXT,
    number_value  REAL,
    date_value    TEXT,
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL,
    UNIQUE (task_id, field_id)
);

CREATE INDEX idx_custom_fields_list ON custom_fields(list_id);
CREATE INDEX idx_custom_field_values_field ON custom_field_values(field_id);
`

const migration003SQL = `
CREATE TABLE task_dependencies (
    id                  TEXT PRIMARY KEY,
    task_id             TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    depends_on_task_id  TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    type                TEXT NOT NULL CHECK (type IN ('blocks', 'blocked_by')),
    dependent_id        TEXT NOT NULL,
    dependency_id       TEXT NOT NULL,
    created_at          DATETIME NOT NULL,
    UNIQUE (task_id, depends_on_task_id, type),
    UNIQUE (dependent_id, dependency_id),
    CHECK (task_id <> depends_on_task_id)
);

CREATE INDEX idx_task_dependencies_dependent ON task_dependencies(dependent_id);
CREATE INDEX idx_task_dependencies_dependency ON task_dependencies(dependency_id);
`

// Migrate runs all pending migrations inside transactions.
func Migrate(db *sql.DB) error {
	if db == nil {
		return errors.New("db is nil")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at DATETIME)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	currentVersion, err := CurrentVersion(db)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, migration.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", migration.Version, err)
		}

		logging.Component("db").Info().
			Int("version", migration.Version).
			Str("description", migration.Description).
			Msg("applied migration")
		currentVersion = migration.Version
	}

	return nil
}

// CurrentVersion returns the current schema version (0 if no migrations applied).
func CurrentVersion(db *sql.DB) (int, error) {
	if db == nil {
		return 0, errors.New("db is nil")
	}

	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	var version int
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("query schema_version: %w", err)
	}
	return version, nil
}
