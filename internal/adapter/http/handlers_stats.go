package adapthttp

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"moviestats/internal/domain"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	stats, err := s.stats.ForUser(r.Context(), session.Username)
	if errors.Is(err, domain.ErrUserNotFound) {
		// The account behind this session is gone.
		hlog.FromRequest(r).Warn().Str("username", session.Username).Msg("stats: session user not found")
		if err := s.auth.Logout(r.Context(), session.ID); err != nil {
			s.fail(w, r, err)
			return
		}
		s.cookies.Clear(w)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, ViewStats, stats)
}
