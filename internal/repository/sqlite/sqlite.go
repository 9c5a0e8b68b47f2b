// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside your Go binary as a single file.
// For this app it is the keyed alternative to the whole-document JSON store:
// every operation touches only the rows it needs and runs in its own transaction,
// so concurrent requests cannot overwrite each other's changes.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code: no C compiler needed, and it works everywhere Go works.
//
// ID GENERATION:
// users.id and posts.id are INTEGER PRIMARY KEY AUTOINCREMENT. AUTOINCREMENT
// (unlike a plain rowid) guarantees an id is never handed out twice, even after
// the row with the largest id is deleted.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/social-demo/internal/repository"
)

// DB wraps a sql.DB connection pool and hands out the repositories.
type DB struct {
	conn *sql.DB
}

var _ repository.Store = (*DB)(nil)

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/social.db"  → file-based database (persistent)
//   - ":memory:"        → in-memory database (great for tests, lost on close)
//
// SINGLE CONNECTION:
// SQLite allows one writer at a time. Capping the pool at one connection turns
// "database is locked" errors into ordinary queueing inside database/sql, and
// keeps ":memory:" databases alive (each new connection would otherwise open a
// fresh, empty in-memory database). The catch: code holding a *sql.Rows or a
// *sql.Tx must not issue another query on db.conn until it is released.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL (Write-Ahead Logging) lets readers in other processes keep reading
	// while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. Deleting a post relies on
	// ON DELETE CASCADE to remove its reactions and comments.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the user repository backed by this database.
func (db *DB) Users() repository.UserRepository {
	return &UserDB{db: db}
}

// Posts returns the post repository backed by this database.
func (db *DB) Posts() repository.PostRepository {
	return &PostDB{db: db}
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	// google_id is nullable; SQLite treats NULLs as distinct, so UNIQUE only
	// bites for federated accounts.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT NOT NULL UNIQUE,
			password      TEXT,
			name          TEXT NOT NULL,
			profile_image TEXT NOT NULL DEFAULT '',
			verified      INTEGER NOT NULL DEFAULT 0,
			google_id     TEXT UNIQUE,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			author_id  INTEGER NOT NULL REFERENCES users(id),
			title      TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	// Reactions keep insertion order through their own rowid; user_id is not a
	// foreign key because unresolved users render as "Unknown".
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS reactions (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			post_id    INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id    INTEGER NOT NULL,
			reaction   TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_reactions_post_id ON reactions(post_id);
	`)
	if err != nil {
		return fmt.Errorf("creating reactions table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS comments (
			post_id    INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			id         INTEGER NOT NULL,
			user_id    INTEGER NOT NULL,
			text       TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (post_id, id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating comments table: %w", err)
	}

	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling back
// on any error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
// The pre-checks in Create catch the common case; this covers the race where
// two inserts pass the check together.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
