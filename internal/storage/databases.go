// Package storage persists rabbit-hole snapshots and moves them in and out
// of files.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"habitat/internal/log"
)

// DBDriver represents the type of database driver
type DBDriver string

const (
	SQLite DBDriver = "sqlite"
)

// Database interface defines common database operations
type Database interface {
	Open(dataSourceName string) error
	Close() error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	InitSchema(ctx context.Context) error
}

// NewDatabase creates a new Database instance based on the specified driver
func NewDatabase(driver DBDriver, logger *log.Logger) (Database, error) {
	switch driver {
	case SQLite:
		return &SQLiteDatabase{BaseDatabase: BaseDatabase{logger: logger}}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

var errNotOpen = errors.New("database is not open")

// BaseDatabase provides a base implementation of some Database methods
type BaseDatabase struct {
	db     *sql.DB
	logger *log.Logger
}

func (b *BaseDatabase) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if b.db == nil {
		return nil, errNotOpen
	}
	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		b.logger.Error(ctx, "Failed to execute statement", log.Fields{"error": err})
	}
	return res, err
}

func (b *BaseDatabase) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if b.db == nil {
		return nil, errNotOpen
	}
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		b.logger.Error(ctx, "Failed to execute query", log.Fields{"error": err})
	}
	return rows, err
}

// QueryRowContext runs a single-row query. The database must be open.
func (b *BaseDatabase) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return b.db.QueryRowContext(ctx, query, args...)
}
