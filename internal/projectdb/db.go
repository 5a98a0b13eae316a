// Package projectdb is the relational store: project metrics read models for
// the analytics tools plus document and chunk persistence for ingestion.
package projectdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"buildrag/internal/config"
	"buildrag/internal/logging"
)

// ErrProjectNotFound is returned for lookups of unknown projects. Its text is
// part of the tool contract surfaced to callers.
var ErrProjectNotFound = errors.New("Project not found")

// ErrNotFound is the generic missing-row sentinel.
var ErrNotFound = errors.New("not found")

// Store wraps the connection pool.
type Store struct {
	db     *sqlx.DB
	logger logging.Logger
}

// Open connects and configures the pool.
func Open(cfg *config.PostgresConfig) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	lifetime := time.Hour
	if cfg.ConnMaxLifetime > 0 {
		lifetime = time.Duration(cfg.ConnMaxLifetime) * time.Second
	}
	db.SetConnMaxLifetime(lifetime)

	return &Store{db: db, logger: logging.WithComponent("projectdb")}, nil
}

// NewWithDB wraps an existing pool; used by tests with sqlmock.
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db, logger: logging.WithComponent("projectdb")}
}

// DB exposes the pool for components that share it, such as the workflow log.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}
