package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DB is an open database handle together with its SQL dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open opens the database named by dsn and runs migrations.
//
// A postgres:// or postgresql:// URL, or a DSN starting with "postgres:",
// selects Postgres. Anything else is a SQLite path; ":memory:" uses an
// in-memory database pinned to a single connection.
func Open(dsn string) (*DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("empty database dsn")
	}
	if isPostgres(dsn) {
		return openPostgres(dsn)
	}
	return OpenSQLite(dsn)
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.HasPrefix(dsn, "postgres:")
}

// OpenSQLite opens a SQLite database at the given path.
// Sets WAL mode and runs migrations.
func OpenSQLite(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every new connection would see a fresh empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	d := &DB{DB: sqlDB, Dialect: DialectSQLite}
	if err := Migrate(d); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return d, nil
}

func openPostgres(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	d := &DB{DB: sqlDB, Dialect: DialectPostgres}
	if err := Migrate(d); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return d, nil
}
