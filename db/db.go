package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a row lookup by identifier matches nothing
var ErrNotFound = errors.New("not found")

// DB handles all database operations with a shared connection pool
type DB struct {
	db *sql.DB
}

// New opens the SQLite database at the given path
func New(database string) (*DB, error) {
	conn, err := connection(database)
	if err != nil {
		return nil, err
	}
	return &DB{db: conn}, nil
}

// Close closes the underlying connection pool
func (db *DB) Close() error {
	return db.db.Close()
}

// Ping verifies the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// Timestamps are stored as unix seconds in INTEGER columns. The helpers
// below convert between that representation and time.Time values.

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := unixTime(v.Int64)
	return &t
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func stringArg(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
