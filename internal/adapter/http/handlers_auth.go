// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/oauth2"

	"moviestats/internal/app"
	"moviestats/internal/domain"
)

// Messages rendered for duplicate signups.
const (
	msgUsernameTaken = "Username is already taken!"
	msgEmailInUse    = "Email is already in use!"
	msgAccountExists = "An account with these details already exists!"
	msgBadRequest    = "Invalid request body."
)

// OIDCConfig holds single sign-on settings. The zero value disables SSO.
type OIDCConfig struct {
	Enabled      bool
	OAuth2Config *oauth2.Config
	Verifier     *oidc.IDTokenVerifier
}

// NewOIDCConfig discovers the issuer and prepares the code flow.
func NewOIDCConfig(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (OIDCConfig, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return OIDCConfig{}, err
	}
	return OIDCConfig{
		Enabled: true,
		OAuth2Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		Verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"user": nil, "authenticated": false}
	if session, ok := SessionFromContext(r.Context()); ok {
		data["user"] = session.Username
		data["authenticated"] = true
	}
	s.render(w, r, http.StatusOK, ViewHome, data)
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, ViewSignup, map[string]any{"ssoEnabled": s.oidc.Enabled})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, ViewLogin, map[string]any{"ssoEnabled": s.oidc.Enabled})
}

func (s *Server) handleSignupSubmit(w http.ResponseWriter, r *http.Request) {
	v, err := formValues(r, "username", "email", "password")
	if err != nil {
		s.render(w, r, http.StatusBadRequest, ViewSignupSubmit, map[string]any{"validationMessage": msgBadRequest})
		return
	}

	session, err := s.auth.Signup(r.Context(), app.SignupInput{
		Username: v["username"],
		Email:    v["email"],
		Password: v["password"],
	})

	var verr *domain.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		s.render(w, r, http.StatusBadRequest, ViewSignupSubmit, map[string]any{"validationMessage": verr.Message})
		return
	case errors.Is(err, domain.ErrUsernameTaken):
		s.render(w, r, http.StatusConflict, ViewSignupSubmit, map[string]any{"validationMessage": msgUsernameTaken})
		return
	case errors.Is(err, domain.ErrEmailInUse):
		s.render(w, r, http.StatusConflict, ViewSignupSubmit, map[string]any{"validationMessage": msgEmailInUse})
		return
	case errors.Is(err, domain.ErrDuplicateKey):
		s.render(w, r, http.StatusConflict, ViewSignupSubmit, map[string]any{"validationMessage": msgAccountExists})
		return
	default:
		s.fail(w, r, err)
		return
	}

	s.startSession(w, r, session)
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	v, err := formValues(r, "email", "password")
	if err != nil {
		s.render(w, r, http.StatusBadRequest, ViewLoginSubmit, map[string]any{
			"validationError":   true,
			"validationMessage": msgBadRequest,
		})
		return
	}

	session, err := s.auth.Login(r.Context(), app.LoginInput{Email: v["email"], Password: v["password"]})

	var verr *domain.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		s.render(w, r, http.StatusBadRequest, ViewLoginSubmit, map[string]any{
			"validationError":   true,
			"validationMessage": verr.Message,
		})
		return
	case errors.Is(err, domain.ErrAuthentication):
		s.render(w, r, http.StatusUnauthorized, ViewLoginSubmit, s.loginFailure(err))
		return
	default:
		s.fail(w, r, err)
		return
	}

	s.startSession(w, r, session)
}

// loginFailure builds the payload for a rejected login. Whether the email or
// the password was wrong is only revealed when configured.
func (s *Server) loginFailure(err error) map[string]any {
	if !s.reveal {
		return map[string]any{"validationError": false, "invalidCredentials": true}
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		return map[string]any{"validationError": false, "userFound": false}
	}
	return map[string]any{"validationError": false, "userFound": true, "correctPassword": false}
}

// startSession sets the cookie for an already persisted session and sends
// the client home.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, session *domain.Session) {
	if err := s.cookies.Write(w, session); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, err := s.cookies.Read(r)
	s.cookies.Clear(w)
	if err == nil {
		if err := s.auth.Logout(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidc.Enabled {
		s.render(w, r, http.StatusNotFound, ViewNotFound, nil)
		return
	}
	state, err := generateState()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.oidc.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidc.Enabled {
		s.render(w, r, http.StatusNotFound, ViewNotFound, nil)
		return
	}

	state, err := r.Cookie("oauth_state")
	if err != nil || !app.ConstantTimeCompare(r.URL.Query().Get("state"), state.Value) {
		s.render(w, r, http.StatusBadRequest, ViewLoginSubmit, map[string]any{
			"validationError":   true,
			"validationMessage": "Sign-in request expired. Please try again.",
		})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", MaxAge: -1, Path: "/"})

	token, err := s.oidc.OAuth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		s.fail(w, r, errors.New("no id_token in token response"))
		return
	}
	idToken, err := s.oidc.Verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("sso: id token rejected")
		s.render(w, r, http.StatusUnauthorized, ViewLoginSubmit, map[string]any{"validationError": false, "invalidCredentials": true})
		return
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		s.fail(w, r, err)
		return
	}
	if claims.Email == "" || !claims.EmailVerified {
		s.render(w, r, http.StatusUnauthorized, ViewLoginSubmit, map[string]any{"validationError": false, "invalidCredentials": true})
		return
	}

	session, err := s.auth.LoginWithEmail(r.Context(), claims.Email)
	if errors.Is(err, domain.ErrAuthentication) {
		s.render(w, r, http.StatusUnauthorized, ViewLoginSubmit, s.loginFailure(err))
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.startSession(w, r, session)
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
