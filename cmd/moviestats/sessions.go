package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"moviestats/internal/app"
	"moviestats/internal/config"
)

func newSessionsCmd() *cobra.Command {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored sessions",
	}
	sessions.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete every expired session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			return prune(cmd.Context(), cfg, log, cmd.OutOrStdout())
		},
	})
	return sessions
}

func prune(ctx context.Context, cfg config.Config, log zerolog.Logger, out io.Writer) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.close(context.Background()) }()

	// Pruning never hashes, so the hasher is left nil.
	svc := app.NewAuthService(st.users, st.sessions, nil, app.WithLogger(log))
	n, err := svc.PruneExpired(ctx)
	if err != nil {
		return err
	}
	log.Info().Int64("deleted", n).Msg("pruned expired sessions")
	_, err = fmt.Fprintf(out, "deleted %d expired sessions\n", n)
	return err
}
