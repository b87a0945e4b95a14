// Package postgres implements the storage interfaces on PostgreSQL via sqlx and lib/pq.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/marketbridge/platform/internal/app/storage"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ storage.ProfileStore = (*Store)(nil)
var _ storage.InsightStore = (*Store)(nil)
var _ storage.LikeStore = (*Store)(nil)
var _ storage.CommentStore = (*Store)(nil)
var _ storage.SubscriptionStore = (*Store)(nil)
var _ storage.RequestStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.MarketplaceStore = (*Store)(nil)
var _ storage.IdentityStore = (*Store)(nil)

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Open connects to dsn with the lib/pq driver and verifies the connection.
func Open(dsn string, pool PoolConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	return db, nil
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// mapError translates driver errors into storage sentinels. Anything else is
// returned unchanged.
func mapError(err error, kind, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.NotFound(kind, key)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return storage.Conflict("%s", pqErr.Message)
	}
	return err
}

// expectAffected turns a zero-row write into ErrNotFound.
func expectAffected(res sql.Result, kind, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFound(kind, key)
	}
	return nil
}
