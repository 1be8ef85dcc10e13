package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// errNotOpened is returned by every operation on a closed store.
var errNotOpened = errors.New("database not opened")

// SQLiteStore keeps run history in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a store. A nil logger discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// NewWithDB wraps an existing connection. Migrations are not run.
func NewWithDB(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	s := NewSQLiteStore(logger)
	s.db = db
	return s
}

// Open opens the database at path and applies pending migrations.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(ctx context.Context, path string) error {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return err
	}
	s.logger.Debug("opened state store", slog.String("path", path))
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// generateID creates a new run ID.
func generateID() string {
	return uuid.New().String()
}
