package adapthttp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"moviestats/internal/domain"
)

// SessionCookieName is the cookie carrying the signed session id.
const SessionCookieName = "moviestats.sid"

// SessionCookies signs session ids into cookies and reads them back. The
// cookie is an HS256 JWT whose jti is the session id; the store remains the
// authority on whether that session is still valid.
type SessionCookies struct {
	secret []byte
	secure bool
	now    func() time.Time
}

// NewSessionCookies creates a codec signing with secret.
func NewSessionCookies(secret []byte, secure bool) *SessionCookies {
	return &SessionCookies{secret: secret, secure: secure, now: time.Now}
}

func randomSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("session cookie secret: %v", err))
	}
	return b
}

// WithClock replaces time.Now when checking token expiry.
func (c *SessionCookies) WithClock(now func() time.Time) *SessionCookies {
	c.now = now
	return c
}

// Write sets the session cookie for s.
func (c *SessionCookies) Write(w http.ResponseWriter, s *domain.Session) error {
	expires := ceilSecond(s.ExpiresAt)
	claims := jwt.RegisteredClaims{
		ID:        s.ID,
		IssuedAt:  jwt.NewNumericDate(s.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return fmt.Errorf("sign session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int((expires.Sub(s.CreatedAt) + time.Second - 1) / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read returns the session id carried by the request. A missing, tampered,
// or expired cookie yields domain.ErrSessionNotFound.
func (c *SessionCookies) Read(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", domain.ErrSessionNotFound
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid || claims.ID == "" {
		return "", domain.ErrSessionNotFound
	}
	return claims.ID, nil
}

// ceilSecond rounds t up to a whole second. JWT and cookie expiry carry
// second precision, and rounding down would end a session before its store
// record does.
func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); !r.Equal(t) {
		return r.Add(time.Second)
	}
	return t
}

// Clear expires the session cookie on the client.
func (c *SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
