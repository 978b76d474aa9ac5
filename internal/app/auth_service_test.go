package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"moviestats/internal/adapter/memory"
	"moviestats/internal/app"
	"moviestats/internal/domain"
)

type mockUserRepo struct {
	findByUsernameOrEmailFn func(ctx context.Context, username, email string) (*domain.User, error)
	findByUsernameFn        func(ctx context.Context, username string) (*domain.User, error)
	findCredentialsFn       func(ctx context.Context, email string) (*domain.Credentials, error)
	insertFn                func(ctx context.Context, u domain.NewUser) (*domain.User, error)
}

func (m *mockUserRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	if m.findByUsernameOrEmailFn != nil {
		return m.findByUsernameOrEmailFn(ctx, username, email)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) FindCredentialsByEmail(ctx context.Context, email string) (*domain.Credentials, error) {
	if m.findCredentialsFn != nil {
		return m.findCredentialsFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Insert(ctx context.Context, u domain.NewUser) (*domain.User, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, u)
	}
	return &domain.User{ID: "1", Username: u.Username, Email: u.Email, UserType: u.UserType}, nil
}

type mockSessionRepo struct {
	saveFn          func(ctx context.Context, s *domain.Session) error
	getByIDFn       func(ctx context.Context, id string) (*domain.Session, error)
	deleteFn        func(ctx context.Context, id string) error
	deleteExpiredFn func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockSessionRepo) Save(ctx context.Context, s *domain.Session) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, s)
	}
	return nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx, now)
	}
	return 0, nil
}

// plainHasher keeps service tests fast; the real hasher has its own tests.
type plainHasher struct{}

func (plainHasher) Hash(_ context.Context, raw string) (string, error) {
	return "hashed:" + raw, nil
}

func (plainHasher) Verify(_ context.Context, raw, encoded string) (bool, error) {
	return encoded == "hashed:"+raw, nil
}

func validSignup() app.SignupInput {
	return app.SignupInput{Username: "alice", Email: "alice@example.com", Password: "secret"}
}

func TestAuthService_Signup_Success(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var inserted domain.NewUser
	users := &mockUserRepo{
		insertFn: func(_ context.Context, u domain.NewUser) (*domain.User, error) {
			inserted = u
			return &domain.User{ID: "7", Username: u.Username, Email: u.Email, UserType: u.UserType}, nil
		},
	}
	var saved *domain.Session
	sessions := &mockSessionRepo{
		saveFn: func(_ context.Context, s *domain.Session) error {
			saved = s
			return nil
		},
	}

	svc := app.NewAuthService(users, sessions, plainHasher{}, app.WithClock(func() time.Time { return t0 }))
	sess, err := svc.Signup(ctx, validSignup())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if inserted.PasswordHash != "hashed:secret" {
		t.Errorf("expected hashed password to be stored, got %q", inserted.PasswordHash)
	}
	if inserted.UserType != domain.DefaultUserType {
		t.Errorf("expected user type %q, got %q", domain.DefaultUserType, inserted.UserType)
	}
	if saved == nil || saved != sess {
		t.Fatal("expected the returned session to be persisted")
	}
	if !sess.Authenticated || sess.Username != "alice" || sess.Email != "alice@example.com" {
		t.Errorf("unexpected session %+v", sess)
	}
	if !sess.ExpiresAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("expected expiry %v, got %v", t0.Add(time.Hour), sess.ExpiresAt)
	}
	if sess.ID == "" {
		t.Error("expected a session id")
	}
}

func TestAuthService_Signup_ValidationFailsFast(t *testing.T) {
	users := &mockUserRepo{
		findByUsernameOrEmailFn: func(context.Context, string, string) (*domain.User, error) {
			t.Fatal("store must not be queried for invalid input")
			return nil, nil
		},
	}
	svc := app.NewAuthService(users, &mockSessionRepo{}, plainHasher{})

	in := validSignup()
	in.Username = "not valid!"
	_, err := svc.Signup(context.Background(), in)

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAuthService_Signup_Uniqueness(t *testing.T) {
	alice := &domain.User{ID: "1", Username: "alice", Email: "alice@example.com"}
	bob := &domain.User{ID: "2", Username: "bob", Email: "bob@example.com"}

	tests := []struct {
		name    string
		in      app.SignupInput
		byOr    *domain.User
		byName  *domain.User
		wantErr error
	}{
		{
			name:    "same username, different email",
			in:      app.SignupInput{Username: "alice", Email: "new@example.com", Password: "pw"},
			byOr:    alice,
			byName:  alice,
			wantErr: domain.ErrUsernameTaken,
		},
		{
			name:    "same email, different username",
			in:      app.SignupInput{Username: "carol", Email: "alice@example.com", Password: "pw"},
			byOr:    alice,
			wantErr: domain.ErrEmailInUse,
		},
		{
			name:    "both collide with different users",
			in:      app.SignupInput{Username: "bob", Email: "alice@example.com", Password: "pw"},
			byOr:    alice,
			byName:  bob,
			wantErr: domain.ErrUsernameTaken,
		},
		{
			name:    "both collide with the same user",
			in:      app.SignupInput{Username: "alice", Email: "alice@example.com", Password: "pw"},
			byOr:    alice,
			byName:  alice,
			wantErr: domain.ErrUsernameTaken,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &mockUserRepo{
				findByUsernameOrEmailFn: func(context.Context, string, string) (*domain.User, error) { return tc.byOr, nil },
				findByUsernameFn:        func(context.Context, string) (*domain.User, error) { return tc.byName, nil },
				insertFn: func(context.Context, domain.NewUser) (*domain.User, error) {
					t.Fatal("insert must not run after a collision")
					return nil, nil
				},
			}
			svc := app.NewAuthService(users, &mockSessionRepo{}, plainHasher{})
			_, err := svc.Signup(context.Background(), tc.in)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if !errors.Is(err, domain.ErrDuplicateKey) {
				t.Fatalf("expected a duplicate-key error, got %v", err)
			}
		})
	}
}

func TestAuthService_Signup_InsertRaceReclassified(t *testing.T) {
	lookups := 0
	users := &mockUserRepo{
		findByUsernameOrEmailFn: func(context.Context, string, string) (*domain.User, error) {
			lookups++
			if lookups == 1 {
				return nil, nil
			}
			// The concurrent signup is visible now.
			return &domain.User{Username: "alice", Email: "other@example.com"}, nil
		},
		insertFn: func(context.Context, domain.NewUser) (*domain.User, error) {
			return nil, domain.ErrDuplicateKey
		},
	}
	saved := false
	sessions := &mockSessionRepo{saveFn: func(context.Context, *domain.Session) error { saved = true; return nil }}

	svc := app.NewAuthService(users, sessions, plainHasher{})
	_, err := svc.Signup(context.Background(), validSignup())
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if saved {
		t.Error("no session may be issued when the insert fails")
	}
}

func TestAuthService_Signup_StoreFailure(t *testing.T) {
	users := &mockUserRepo{
		insertFn: func(context.Context, domain.NewUser) (*domain.User, error) {
			return nil, domain.StoreError("users.insert", errors.New("no reachable servers"))
		},
	}
	svc := app.NewAuthService(users, &mockSessionRepo{}, plainHasher{})
	_, err := svc.Signup(context.Background(), validSignup())
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Fatalf("error leaks the password: %v", err)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	ctx := context.Background()
	hasher, err := app.NewPasswordHasher()
	if err != nil {
		t.Fatal(err)
	}
	hash, err := hasher.Hash(ctx, "testpass123")
	if err != nil {
		t.Fatal(err)
	}

	users := &mockUserRepo{
		findCredentialsFn: func(_ context.Context, email string) (*domain.Credentials, error) {
			return &domain.Credentials{ID: "1", Username: "testuser", Email: email, PasswordHash: hash, UserType: "admin"}, nil
		},
	}
	sessions := &mockSessionRepo{
		saveFn: func(_ context.Context, s *domain.Session) error {
			if s.Username != "testuser" {
				t.Errorf("expected username testuser, got %s", s.Username)
			}
			return nil
		},
	}

	svc := app.NewAuthService(users, sessions, hasher)
	sess, err := svc.Login(ctx, app.LoginInput{Email: "test@example.com", Password: "testpass123"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.UserType != "admin" {
		t.Errorf("expected user type admin, got %s", sess.UserType)
	}
}

func TestAuthService_SignupThenLogin_MultibytePassword(t *testing.T) {
	ctx := context.Background()
	hasher, err := app.NewPasswordHasher()
	if err != nil {
		t.Fatal(err)
	}
	db := memory.New()
	svc := app.NewAuthService(db, db.NewSessionRepo(), hasher)

	pw := strings.Repeat("😀", 20)
	if _, err := svc.Signup(ctx, app.SignupInput{Username: "emoji", Email: "emoji@example.com", Password: pw}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := svc.Login(ctx, app.LoginInput{Email: "emoji@example.com", Password: pw}); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, err = svc.Login(ctx, app.LoginInput{Email: "emoji@example.com", Password: strings.Repeat("😁", 20)})
	if !errors.Is(err, domain.ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
}

func TestAuthService_Login_Failures(t *testing.T) {
	users := &mockUserRepo{
		findCredentialsFn: func(_ context.Context, email string) (*domain.Credentials, error) {
			if email != "known@example.com" {
				return nil, nil
			}
			return &domain.Credentials{Username: "known", Email: email, PasswordHash: "hashed:right"}, nil
		},
	}
	sessions := &mockSessionRepo{
		saveFn: func(context.Context, *domain.Session) error {
			t.Fatal("no session may be issued on failure")
			return nil
		},
	}
	svc := app.NewAuthService(users, sessions, plainHasher{})

	_, err := svc.Login(context.Background(), app.LoginInput{Email: "nobody@example.com", Password: "right"})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	_, err = svc.Login(context.Background(), app.LoginInput{Email: "known@example.com", Password: "wrong"})
	if !errors.Is(err, domain.ErrWrongPassword) {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}

	_, err = svc.Login(context.Background(), app.LoginInput{Email: "known", Password: "right"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestAuthService_ValidateSession_TTLBoundary(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	stored := &domain.Session{ID: "tok", Username: "u", Authenticated: true, CreatedAt: t0, ExpiresAt: t0.Add(time.Hour)}

	tests := []struct {
		name    string
		offset  time.Duration
		wantErr error
	}{
		{"at issuance", 0, nil},
		{"just before expiry", 3_599_999 * time.Millisecond, nil},
		{"at expiry", 3_600_000 * time.Millisecond, domain.ErrSessionExpired},
		{"long after", 48 * time.Hour, domain.ErrSessionExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deleted := false
			sessions := &mockSessionRepo{
				getByIDFn: func(context.Context, string) (*domain.Session, error) { return stored, nil },
				deleteFn:  func(context.Context, string) error { deleted = true; return nil },
			}
			now := t0.Add(tc.offset)
			svc := app.NewAuthService(&mockUserRepo{}, sessions, plainHasher{}, app.WithClock(func() time.Time { return now }))

			got, err := svc.ValidateSession(context.Background(), "tok")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr == nil && got.Username != "u" {
				t.Errorf("unexpected session %+v", got)
			}
			if tc.wantErr != nil && !deleted {
				t.Error("expected expired session to be deleted")
			}
			if tc.wantErr != nil && !errors.Is(err, domain.ErrUnauthenticated) {
				t.Error("expired sessions must read as unauthenticated")
			}
		})
	}
}

func TestAuthService_ValidateSession_NotFound(t *testing.T) {
	svc := app.NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, plainHasher{})

	for _, id := range []string{"", "missing"} {
		_, err := svc.ValidateSession(context.Background(), id)
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("id %q: expected ErrSessionNotFound, got %v", id, err)
		}
	}
}

func TestAuthService_ValidateSession_StoreFailure(t *testing.T) {
	sessions := &mockSessionRepo{
		getByIDFn: func(context.Context, string) (*domain.Session, error) {
			return nil, domain.StoreError("sessions.get", errors.New("timeout"))
		},
	}
	svc := app.NewAuthService(&mockUserRepo{}, sessions, plainHasher{})
	_, err := svc.ValidateSession(context.Background(), "tok")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatal("a store failure must not be mistaken for a missing session")
	}
}

func TestAuthService_Logout_Idempotent(t *testing.T) {
	calls := 0
	sessions := &mockSessionRepo{deleteFn: func(context.Context, string) error { calls++; return nil }}
	svc := app.NewAuthService(&mockUserRepo{}, sessions, plainHasher{})

	for i := 0; i < 3; i++ {
		if err := svc.Logout(context.Background(), "tok"); err != nil {
			t.Fatalf("logout %d: %v", i, err)
		}
	}
	if err := svc.Logout(context.Background(), ""); err != nil {
		t.Fatalf("logout without a session: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 deletes, got %d", calls)
	}
}

func TestAuthService_LoginWithEmail(t *testing.T) {
	users := &mockUserRepo{
		findCredentialsFn: func(_ context.Context, email string) (*domain.Credentials, error) {
			if email == "sso@example.com" {
				return &domain.Credentials{Username: "sso", Email: email, UserType: "user"}, nil
			}
			return nil, nil
		},
	}
	svc := app.NewAuthService(users, &mockSessionRepo{}, plainHasher{})

	sess, err := svc.LoginWithEmail(context.Background(), "sso@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !sess.Authenticated || sess.Username != "sso" {
		t.Errorf("unexpected session %+v", sess)
	}

	if _, err := svc.LoginWithEmail(context.Background(), "stranger@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_PruneExpired(t *testing.T) {
	t0 := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	sessions := &mockSessionRepo{
		deleteExpiredFn: func(_ context.Context, now time.Time) (int64, error) {
			if !now.Equal(t0) {
				t.Errorf("expected prune at %v, got %v", t0, now)
			}
			return 4, nil
		},
	}
	svc := app.NewAuthService(&mockUserRepo{}, sessions, plainHasher{}, app.WithClock(func() time.Time { return t0 }))
	n, err := svc.PruneExpired(context.Background())
	if err != nil || n != 4 {
		t.Fatalf("expected (4, nil), got (%d, %v)", n, err)
	}
}

func TestConstantTimeCompare(t *testing.T) {
	if !app.ConstantTimeCompare("abc", "abc") {
		t.Error("equal strings must compare equal")
	}
	if app.ConstantTimeCompare("abc", "abd") {
		t.Error("different strings must not compare equal")
	}
}
