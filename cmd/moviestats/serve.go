package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	adapthttp "moviestats/internal/adapter/http"
	"moviestats/internal/app"
	"moviestats/internal/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}()

	handler, err := buildHandler(ctx, cfg, st, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func buildHandler(ctx context.Context, cfg config.Config, st *stores, log zerolog.Logger) (http.Handler, error) {
	hasher, err := app.NewPasswordHasher(
		app.WithAlgorithm(cfg.Password.Algorithm),
		app.WithBcryptCost(cfg.Password.BcryptCost),
		app.WithConcurrency(cfg.Password.Concurrency),
	)
	if err != nil {
		return nil, err
	}

	authSvc := app.NewAuthService(st.users, st.sessions, hasher,
		app.WithSessionTTL(cfg.Session.TTL),
		app.WithLogger(log),
	)
	statsSvc := app.NewStatsService(st.users)

	var sso adapthttp.OIDCConfig
	if cfg.OIDC.Enabled() {
		sso, err = adapthttp.NewOIDCConfig(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID, cfg.OIDC.ClientSecret, cfg.OIDC.RedirectURL)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery: %w", err)
		}
		log.Info().Str("issuer", cfg.OIDC.Issuer).Msg("sso enabled")
	}

	srv := adapthttp.New(authSvc, statsSvc, adapthttp.Options{
		WebDir:             cfg.WebDir,
		Cookies:            adapthttp.NewSessionCookies([]byte(cfg.Session.Secret), cfg.Session.CookieSecure),
		OIDC:               sso,
		Logger:             log,
		RevealLoginFailure: cfg.RevealLoginFailure,
	})
	return srv.Handler(), nil
}
