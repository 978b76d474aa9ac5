package adapthttp

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"moviestats/internal/app"
	"moviestats/internal/domain"
)

// StatsService summarizes a user's watchlist.
type StatsService interface {
	ForUser(ctx context.Context, username string) (domain.WatchStats, error)
}

// Options configures a Server.
type Options struct {
	WebDir   string
	Renderer Renderer
	Cookies  *SessionCookies
	OIDC     OIDCConfig
	Logger   zerolog.Logger

	// RevealLoginFailure renders whether the email or the password was
	// wrong instead of a single invalid-credentials flag.
	RevealLoginFailure bool
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth     *app.AuthService
	stats    StatsService
	renderer Renderer
	cookies  *SessionCookies
	oidc     OIDCConfig
	webDir   string
	reveal   bool
	log      zerolog.Logger
}

// New creates a Server wired to the given application services. Without
// opts.Cookies, session cookies are signed with a per-process random secret.
func New(auth *app.AuthService, stats StatsService, opts Options) *Server {
	if opts.Renderer == nil {
		opts.Renderer = JSONRenderer{}
	}
	if opts.Cookies == nil {
		opts.Cookies = NewSessionCookies(randomSecret(), false)
	}
	return &Server{
		auth:     auth,
		stats:    stats,
		renderer: opts.Renderer,
		cookies:  opts.Cookies,
		oidc:     opts.OIDC,
		webDir:   opts.WebDir,
		reveal:   opts.RevealLoginFailure,
		log:      opts.Logger,
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.loggingMiddleware,
		middleware.Recoverer,
		withNoCache,
	)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.With(s.LoadSession).Get("/", s.handleHome)
	r.Get("/signup", s.handleSignupForm)
	r.Get("/login", s.handleLoginForm)
	r.Post("/signupSubmit", s.handleSignupSubmit)
	r.Post("/loginSubmit", s.handleLoginSubmit)
	r.Get("/logout", s.handleLogout)

	r.Get("/auth/sso/login", s.handleSSOLogin)
	r.Get("/auth/sso/callback", s.handleSSOCallback)

	r.Group(func(r chi.Router) {
		r.Use(s.RequireSession)
		r.Get("/stats", s.handleStats)
	})

	r.NotFound(s.handleFallback)
	return r
}
