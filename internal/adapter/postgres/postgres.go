// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"moviestats/internal/domain"
)

// Constraint names referenced when classifying unique violations.
const (
	constraintUsername = "users_username_key"
	constraintEmail    = "users_email_key"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = pq.ErrorCode("23505")

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(ctx context.Context, connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, domain.StoreError("postgres ping", err)
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			user_type TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT ` + constraintUsername + ` UNIQUE (username),
			CONSTRAINT ` + constraintEmail + ` UNIQUE (email)
		);`,
		`CREATE TABLE IF NOT EXISTS watchlist_entries (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			movie_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			watched TEXT NOT NULL,
			position INT NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, movie_id)
		);`,
		`CREATE TABLE IF NOT EXISTS rejected_movies (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			movie_id TEXT NOT NULL,
			PRIMARY KEY (user_id, movie_id)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL,
			user_type TEXT NOT NULL,
			authenticated BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);`,
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return domain.StoreError("migrate", err)
		}
	}
	return nil
}

// classify maps driver errors onto domain errors. Unique violations become
// duplicate-key errors named after the index that fired; everything else is
// a store fault.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case constraintUsername:
			return domain.ErrUsernameTaken
		case constraintEmail:
			return domain.ErrEmailInUse
		default:
			return fmt.Errorf("%s: %w", op, domain.ErrDuplicateKey)
		}
	}
	return domain.StoreError(op, err)
}
