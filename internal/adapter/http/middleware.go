package adapthttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"moviestats/internal/domain"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext returns the session attached by LoadSession or
// RequireSession.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(*domain.Session)
	return s, ok && s != nil
}

// resolveSession returns the valid session for the request, or nil when the
// caller is unauthenticated. Only store faults are returned as errors.
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request) (*domain.Session, error) {
	id, err := s.cookies.Read(r)
	if err != nil {
		return nil, nil
	}

	session, err := s.auth.ValidateSession(r.Context(), id)
	if errors.Is(err, domain.ErrUnauthenticated) {
		s.cookies.Clear(w)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// LoadSession attaches a valid session to the request context when there is
// one. It never redirects.
func (s *Server) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.resolveSession(w, r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if session != nil {
			r = r.WithContext(context.WithValue(r.Context(), sessionContextKey, session))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession redirects unauthenticated requests to /login without
// invoking next.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.resolveSession(w, r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if session == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware attaches the server logger to the request and writes one
// access line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})
	return hlog.NewHandler(s.log)(access(next))
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
