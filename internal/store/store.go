package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - data table only (also what older satcache.db files contain)
// 1 - added sessions audit table
const currentSchemaVersion = 1

// Store is the SQLite-backed Cache.
type Store struct {
	db   *sql.DB
	path string
}

var _ Cache = (*Store)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file the store was opened from.
func (s *Store) Path() string {
	return s.path
}

// Get returns the result stored for hash.
// A missing hash is ("", false, nil).
func (s *Store) Get(ctx context.Context, hash string) (string, bool, error) {
	var result string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM data WHERE hash = ?`, hash).Scan(&result)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get result: %w", err)
	}
	return result, true, nil
}

// PutIfAbsent stores result under hash unless hash is already present.
// Uses ON CONFLICT(hash) DO NOTHING - an existing result is never replaced.
// inserted reports whether this call wrote the row.
func (s *Store) PutIfAbsent(ctx context.Context, hash, result string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO data (hash, result)
		VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, result)
	if err != nil {
		return false, fmt.Errorf("put result: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("put result: %w", err)
	}
	return n == 1, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the sessions audit table.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT    NOT NULL PRIMARY KEY,
			solver     TEXT    NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at   INTEGER NOT NULL,
			lines      INTEGER NOT NULL DEFAULT 0,
			lookups    INTEGER NOT NULL DEFAULT 0,
			hits       INTEGER NOT NULL DEFAULT 0,
			misses     INTEGER NOT NULL DEFAULT 0,
			forwarded  INTEGER NOT NULL DEFAULT 0,
			end_reason TEXT    NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
