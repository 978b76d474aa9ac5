// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"moviestats/internal/domain"
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(ctx context.Context, raw string) (string, error)
	Verify(ctx context.Context, raw, encoded string) (bool, error)
}

// AuthService handles registration, authentication and session management.
type AuthService struct {
	users     domain.UserRepository
	sessions  domain.SessionRepository
	hasher    Hasher
	validator *Validator
	ttl       time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithSessionTTL overrides domain.SessionTTL.
func WithSessionTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// WithLogger attaches a logger for session lifecycle events.
func WithLogger(l zerolog.Logger) AuthOption {
	return func(s *AuthService) { s.log = l }
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, hasher Hasher, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		validator: NewValidator(),
		ttl:       domain.SessionTTL,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup registers a new user and returns an authenticated session for it.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.Session, error) {
	in, err := s.validator.Signup(in)
	if err != nil {
		return nil, err
	}

	if err := s.checkAvailable(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Insert(ctx, domain.NewUser{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		UserType:     domain.DefaultUserType,
	})
	if errors.Is(err, domain.ErrDuplicateKey) {
		// Lost a race with a concurrent signup; report the reason with the
		// same precedence as the pre-insert check.
		if reason := s.checkAvailable(ctx, in.Username, in.Email); reason != nil {
			return nil, reason
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("username", user.Username).Msg("user registered")
	return s.issue(ctx, user.Username, user.Email, user.UserType)
}

// Login verifies credentials and returns an authenticated session.
// Unknown email and wrong password are distinct errors; callers decide how
// much of that to reveal.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*domain.Session, error) {
	in, err := s.validator.Login(in)
	if err != nil {
		return nil, err
	}

	cred, err := s.users.FindCredentialsByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, domain.ErrUserNotFound
	}

	ok, err := s.hasher.Verify(ctx, in.Password, cred.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrWrongPassword
	}

	return s.issue(ctx, cred.Username, cred.Email, cred.UserType)
}

// LoginWithEmail issues a session for an existing user whose identity was
// already proven elsewhere (e.g. a verified SSO email).
func (s *AuthService) LoginWithEmail(ctx context.Context, email string) (*domain.Session, error) {
	cred, err := s.users.FindCredentialsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, domain.ErrUserNotFound
	}
	return s.issue(ctx, cred.Username, cred.Email, cred.UserType)
}

// Logout invalidates a session. Unknown or empty ids are not an error.
func (s *AuthService) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.sessions.Delete(ctx, id)
}

// ValidateSession resolves a session id. Expiry is evaluated here, at read
// time; an expired record is removed on the way out.
func (s *AuthService) ValidateSession(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, domain.ErrSessionNotFound
	}

	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}

	now := s.now()
	if !now.Before(session.ExpiresAt) {
		if err := s.sessions.Delete(ctx, id); err != nil {
			s.log.Warn().Err(err).Msg("delete expired session")
		}
		return nil, domain.ErrSessionExpired
	}
	if !session.ValidAt(now) {
		return nil, domain.ErrUnauthenticated
	}

	return session, nil
}

// PruneExpired removes every session past its expiry and returns how many
// were deleted.
func (s *AuthService) PruneExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

// checkAvailable reports which unique key the candidate collides with.
// A username collision wins over an email collision.
func (s *AuthService) checkAvailable(ctx context.Context, username, email string) error {
	existing, err := s.users.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if existing.Username == username {
		return domain.ErrUsernameTaken
	}

	// The match was on email; the username may still belong to someone else.
	byName, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if byName != nil {
		return domain.ErrUsernameTaken
	}
	return domain.ErrEmailInUse
}

func (s *AuthService) issue(ctx context.Context, username, email, userType string) (*domain.Session, error) {
	id, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &domain.Session{
		ID:            id,
		Username:      username,
		Email:         email,
		UserType:      userType,
		Authenticated: true,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	s.log.Debug().Str("username", username).Time("expires_at", session.ExpiresAt).Msg("session issued")
	return session, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
