package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"moviestats/internal/adapter/memory"
	mongostore "moviestats/internal/adapter/mongo"
	"moviestats/internal/adapter/postgres"
	"moviestats/internal/config"
	"moviestats/internal/domain"
	"moviestats/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "moviestats",
		Short:         "Movie watchlist statistics web app",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newSessionsCmd())
	return root
}

// setup loads configuration and builds the logger shared by every command.
func setup() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, log, nil
}

// stores bundles the repositories selected by STORE_DRIVER.
type stores struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	close    func(context.Context) error
}

func openStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		db, err := mongostore.Open(ctx, cfg.Store.MongoConnectionString(), cfg.Store.MongoDatabase)
		if err != nil {
			return nil, err
		}
		log.Info().Str("database", cfg.Store.MongoDatabase).Msg("connected to mongo")
		return &stores{users: db, sessions: mongostore.NewSessionRepo(db), close: db.Close}, nil

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("connected to postgres")
		return &stores{
			users:    db,
			sessions: postgres.NewSessionRepo(db),
			close:    func(context.Context) error { return db.Close() },
		}, nil

	case config.DriverMemory:
		log.Warn().Msg("using in-memory store; data is lost on exit")
		db := memory.New()
		return &stores{
			users:    db,
			sessions: db.NewSessionRepo(),
			close:    func(context.Context) error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
