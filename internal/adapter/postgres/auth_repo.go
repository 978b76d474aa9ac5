package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"moviestats/internal/domain"
)

const userColumns = "id::text, username, email, user_type, created_at"

// FindByUsernameOrEmail returns a user matching either key, preferring the
// username match.
func (d *DB) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	var u domain.User
	err := d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1 OR email = $2 ORDER BY (username = $1) DESC LIMIT 1",
		username, email,
	).Scan(&u.ID, &u.Username, &u.Email, &u.UserType, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("users.find_by_username_or_email", err)
	}
	return &u, nil
}

// FindByUsername retrieves a user with its watchlist and rejected movies.
func (d *DB) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1",
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.UserType, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("users.find_by_username", err)
	}

	if u.Watchlist, err = d.watchlist(ctx, u.ID); err != nil {
		return nil, err
	}
	if u.RejectedMovies, err = d.rejected(ctx, u.ID); err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) watchlist(ctx context.Context, userID string) ([]domain.WatchlistEntry, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT movie_id, title, watched FROM watchlist_entries WHERE user_id = $1 ORDER BY position, movie_id",
		userID,
	)
	if err != nil {
		return nil, classify("watchlist.list", err)
	}
	defer rows.Close()

	var out []domain.WatchlistEntry
	for rows.Next() {
		var e domain.WatchlistEntry
		if err := rows.Scan(&e.MovieID, &e.Title, &e.Watched); err != nil {
			return nil, classify("watchlist.scan", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("watchlist.list", err)
	}
	return out, nil
}

func (d *DB) rejected(ctx context.Context, userID string) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT movie_id FROM rejected_movies WHERE user_id = $1 ORDER BY movie_id",
		userID,
	)
	if err != nil {
		return nil, classify("rejected.list", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify("rejected.scan", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("rejected.list", err)
	}
	return out, nil
}

// FindCredentialsByEmail returns the login projection for email.
func (d *DB) FindCredentialsByEmail(ctx context.Context, email string) (*domain.Credentials, error) {
	var c domain.Credentials
	err := d.sql.QueryRowContext(ctx,
		"SELECT id::text, username, email, password_hash, user_type FROM users WHERE email = $1",
		email,
	).Scan(&c.ID, &c.Username, &c.Email, &c.PasswordHash, &c.UserType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("users.find_credentials", err)
	}
	return &c, nil
}

// Insert creates a new user.
func (d *DB) Insert(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	userType := nu.UserType
	if userType == "" {
		userType = domain.DefaultUserType
	}

	var u domain.User
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO users (username, email, password_hash, user_type, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING "+userColumns,
		nu.Username, nu.Email, nu.PasswordHash, userType, time.Now().UTC(),
	).Scan(&u.ID, &u.Username, &u.Email, &u.UserType, &u.CreatedAt)
	if err != nil {
		return nil, classify("users.insert", err)
	}
	return &u, nil
}

// SessionRepo implements session repository operations on DB.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Save upserts a session by id.
func (r *SessionRepo) Save(ctx context.Context, s *domain.Session) error {
	_, err := r.db.sql.ExecContext(ctx,
		`INSERT INTO sessions (id, username, email, user_type, authenticated, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			user_type = EXCLUDED.user_type,
			authenticated = EXCLUDED.authenticated,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`,
		s.ID, s.Username, s.Email, s.UserType, s.Authenticated, s.CreatedAt, s.ExpiresAt,
	)
	return classify("sessions.save", err)
}

// GetByID retrieves a session by id.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT id, username, email, user_type, authenticated, created_at, expires_at FROM sessions WHERE id = $1",
		id,
	).Scan(&s.ID, &s.Username, &s.Email, &s.UserType, &s.Authenticated, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("sessions.get", err)
	}
	return &s, nil
}

// Delete deletes a session by id.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE id = $1", id)
	return classify("sessions.delete", err)
}

// DeleteExpired deletes all sessions expired at now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= $1", now)
	if err != nil {
		return 0, classify("sessions.delete_expired", err)
	}
	n, err := res.RowsAffected()
	return n, classify("sessions.delete_expired", err)
}
