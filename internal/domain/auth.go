// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// DefaultUserType is assigned to every account created through signup.
const DefaultUserType = "user"

// SessionTTL is how long an issued session stays valid.
const SessionTTL = time.Hour

// User is a registered account. It never carries the password hash; only
// Credentials does.
type User struct {
	ID             string
	Username       string
	Email          string
	UserType       string
	Watchlist      []WatchlistEntry
	RejectedMovies []string
	CreatedAt      time.Time
}

// NewUser is the payload for UserRepository.Insert.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	UserType     string
}

// Credentials is the projection read on the login path.
type Credentials struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	UserType     string
}

// Session binds a client to an authenticated identity until ExpiresAt.
type Session struct {
	ID            string
	Username      string
	Email         string
	UserType      string
	Authenticated bool
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// ValidAt reports whether the session authenticates a request made at now.
// A session is valid on [CreatedAt, ExpiresAt) only.
func (s *Session) ValidAt(now time.Time) bool {
	return s != nil && s.Authenticated && now.Before(s.ExpiresAt)
}

// UserRepository defines the port for user persistence operations.
// Lookups return (nil, nil) when nothing matches.
type UserRepository interface {
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindCredentialsByEmail(ctx context.Context, email string) (*Credentials, error)
	Insert(ctx context.Context, u NewUser) (*User, error)
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	// Save creates or replaces the session with the same ID.
	Save(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
