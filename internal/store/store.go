// Package store persists the carousel's icons, their selection actions,
// settings and selection history in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is a SQLite database holding carousel data.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the database at dbPath and migrates it.
func New(dbPath string) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")

	db, err := sql.Open("sqlite", "file:"+dbPath+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database %s: %w", dbPath, err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// affectedOne maps a zero-row update or delete to ErrNotFound.
func affectedOne(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isForeignKeyViolation reports whether err is SQLite rejecting a row whose
// parent does not exist.
func isForeignKeyViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}
