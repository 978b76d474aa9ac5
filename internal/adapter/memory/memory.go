// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"moviestats/internal/domain"
)

type userRecord struct {
	user         domain.User
	passwordHash string
}

// DB implements an in-memory database storage.
type DB struct {
	mu         sync.Mutex
	users      map[string]*userRecord // by id
	byUsername map[string]string
	byEmail    map[string]string
	sessions   map[string]domain.Session
	now        func() time.Time
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		users:      make(map[string]*userRecord),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		sessions:   make(map[string]domain.Session),
		now:        time.Now,
	}
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- UserRepository ---

// FindByUsernameOrEmail returns a user matching either key. A username
// match is preferred when the two keys belong to different users.
func (db *DB) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if id, ok := db.byUsername[username]; ok {
		return db.users[id].profile(), nil
	}
	if id, ok := db.byEmail[email]; ok {
		return db.users[id].profile(), nil
	}
	return nil, nil
}

// FindByUsername retrieves a user by username.
func (db *DB) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if id, ok := db.byUsername[username]; ok {
		return db.users[id].profile(), nil
	}
	return nil, nil
}

// FindCredentialsByEmail returns the login projection for email.
func (db *DB) FindCredentialsByEmail(ctx context.Context, email string) (*domain.Credentials, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.byEmail[email]
	if !ok {
		return nil, nil
	}
	rec := db.users[id]
	return &domain.Credentials{
		ID:           rec.user.ID,
		Username:     rec.user.Username,
		Email:        rec.user.Email,
		PasswordHash: rec.passwordHash,
		UserType:     rec.user.UserType,
	}, nil
}

// Insert creates a new user. Username is checked before email.
func (db *DB) Insert(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.byUsername[nu.Username]; ok {
		return nil, domain.ErrUsernameTaken
	}
	if _, ok := db.byEmail[nu.Email]; ok {
		return nil, domain.ErrEmailInUse
	}

	userType := nu.UserType
	if userType == "" {
		userType = domain.DefaultUserType
	}
	rec := &userRecord{
		user: domain.User{
			ID:        uuid.NewString(),
			Username:  nu.Username,
			Email:     nu.Email,
			UserType:  userType,
			CreatedAt: db.now().UTC(),
		},
		passwordHash: nu.PasswordHash,
	}
	db.users[rec.user.ID] = rec
	db.byUsername[nu.Username] = rec.user.ID
	db.byEmail[nu.Email] = rec.user.ID
	return rec.profile(), nil
}

// SetWatchlist replaces a user's watchlist and rejected movies. The watchlist
// is maintained outside this service; this hook exists for seeding.
func (db *DB) SetWatchlist(ctx context.Context, username string, watchlist []domain.WatchlistEntry, rejected []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.byUsername[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	rec := db.users[id]
	rec.user.Watchlist = slices.Clone(watchlist)
	rec.user.RejectedMovies = slices.Clone(rejected)
	return nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// profile returns a copy safe to hand out without the lock.
func (r *userRecord) profile() *domain.User {
	u := r.user
	u.Watchlist = slices.Clone(r.user.Watchlist)
	u.RejectedMovies = slices.Clone(r.user.RejectedMovies)
	return &u
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Save stores s, replacing any session with the same id.
func (r *SessionRepo) Save(ctx context.Context, s *domain.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[s.ID] = *s
	return nil
}

// GetByID retrieves a session by id. Expiry is left to the caller.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, id)
	return nil
}

// DeleteExpired deletes all sessions expired at now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int64
	for k, v := range r.db.sessions {
		if !now.Before(v.ExpiresAt) {
			delete(r.db.sessions, k)
			n++
		}
	}
	return n, nil
}
