package adapthttp

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// render writes view through the configured Renderer.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, view string, data any) {
	if ct, ok := s.renderer.(interface{ ContentType() string }); ok {
		w.Header().Set("Content-Type", ct.ContentType())
	}
	w.WriteHeader(status)
	if err := s.renderer.Render(w, view, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("view", view).Msg("render")
	}
}

// fail logs err and renders the generic error view.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("request failed")
	s.render(w, r, http.StatusInternalServerError, ViewError, map[string]any{
		"message": "Something went wrong. Please try again later.",
	})
}

// parseJSON decodes a JSON request body into dst.
func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// formValues reads the named fields from a JSON or urlencoded body. Missing
// fields come back empty.
func formValues(r *http.Request, fields ...string) (map[string]string, error) {
	out := make(map[string]string, len(fields))

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body map[string]string
		if err := parseJSON(r, &body); err != nil {
			return nil, err
		}
		for _, f := range fields {
			out[f] = body[f]
		}
		return out, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form: %w", err)
	}
	for _, f := range fields {
		out[f] = r.PostForm.Get(f)
	}
	return out, nil
}

// handleFallback serves a static file from the web directory when one exists
// for the path and renders the not-found view otherwise.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if s.webDir != "" && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		reqPath := path.Clean("/" + r.URL.Path)
		staticPath := filepath.Join(s.webDir, filepath.FromSlash(reqPath))
		if fi, err := os.Stat(staticPath); err == nil && !fi.IsDir() {
			http.ServeFile(w, r, staticPath)
			return
		}
	}
	s.render(w, r, http.StatusNotFound, ViewNotFound, nil)
}
