package db

import (
	"fmt"
	"strings"
)

// Migrate runs all schema migrations for the database's dialect.
// Statements are idempotent and re-run on every open.
func Migrate(d *DB) error {
	for i, stmt := range migrations {
		if _, err := d.Exec(forDialect(stmt, d.Dialect)); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

// forDialect expands the column type placeholders used in migrations.
func forDialect(stmt string, d Dialect) string {
	types := map[string]string{
		"{{id}}":   "INTEGER",
		"{{real}}": "REAL",
		"{{json}}": "TEXT",
	}
	if d == DialectPostgres {
		types = map[string]string{
			"{{id}}":   "BIGINT",
			"{{real}}": "DOUBLE PRECISION",
			"{{json}}": "TEXT",
		}
	}
	for k, v := range types {
		stmt = strings.ReplaceAll(stmt, k, v)
	}
	return stmt
}

// Times are unix seconds. Booleans are 0/1 integers in both dialects.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id                {{id}} PRIMARY KEY,
		lane              INTEGER NOT NULL CHECK(lane BETWEEN 0 AND 3),
		state             TEXT NOT NULL CHECK(state IN ('pending','promoted')),
		title             TEXT NOT NULL DEFAULT '',
		artist            TEXT NOT NULL DEFAULT '',
		creator           TEXT NOT NULL DEFAULT '',
		creator_id        {{id}} NOT NULL DEFAULT 0,
		ready_time        BIGINT,
		last_ready_anchor BIGINT,
		early_time        BIGINT,
		promote_time      BIGINT,
		probability       {{real}},
		has_open_issue    INTEGER NOT NULL DEFAULT 0,
		updated_at        BIGINT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_items_state ON items(state)`,
	`CREATE INDEX IF NOT EXISTS idx_items_promote_time ON items(promote_time)`,

	`CREATE TABLE IF NOT EXISTS app_state (
		id            INTEGER PRIMARY KEY CHECK(id = 1),
		last_event_id {{id}} NOT NULL,
		updated_at    BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS updates (
		id          INTEGER PRIMARY KEY CHECK(id = 1),
		timestamp   BIGINT NOT NULL,
		updated_ids {{json}} NOT NULL,
		removed_ids {{json}} NOT NULL
	)`,
}
