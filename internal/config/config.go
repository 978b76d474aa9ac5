// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full application configuration.
type Config struct {
	Port   int    `env:"PORT" envDefault:"4420"`
	WebDir string `env:"WEB_DIR" envDefault:"public"`

	Store    StoreConfig
	Session  SessionConfig
	Password PasswordConfig
	Log      LogConfig
	OIDC     OIDCConfig

	RevealLoginFailure bool `env:"LOGIN_REVEAL_FAILURE_REASON" envDefault:"false"`
}

// StoreConfig selects and locates the user and session store.
type StoreConfig struct {
	Driver        string `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURI      string `env:"MONGODB_URI"`
	MongoUser     string `env:"MONGODB_USER"`
	MongoPassword string `env:"MONGODB_PASSWORD"`
	MongoHost     string `env:"MONGODB_HOST"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"moviestats"`
	DatabaseURL   string `env:"DATABASE_URL"`
}

// SessionConfig controls session lifetime and the session cookie.
type SessionConfig struct {
	Secret       string        `env:"SESSION_SECRET"`
	TTL          time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
}

// PasswordConfig controls password hashing.
type PasswordConfig struct {
	Algorithm   string `env:"PASSWORD_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost  int    `env:"PASSWORD_BCRYPT_COST" envDefault:"12"`
	Concurrency int    `env:"PASSWORD_HASH_CONCURRENCY"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// OIDCConfig enables single sign-on when Issuer is set.
type OIDCConfig struct {
	Issuer       string `env:"OIDC_ISSUER"`
	ClientID     string `env:"OIDC_CLIENT_ID"`
	ClientSecret string `env:"OIDC_CLIENT_SECRET"`
	RedirectURL  string `env:"OIDC_REDIRECT_URL"`
}

// Enabled reports whether SSO is configured.
func (c OIDCConfig) Enabled() bool {
	return c.Issuer != ""
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom parses the given variables only, ignoring the process
// environment.
func LoadFrom(vars map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: vars})
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects incomplete or contradictory settings.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	switch c.Store.Driver {
	case DriverMongo:
		if c.Store.MongoURI == "" && c.Store.MongoHost == "" {
			errs = append(errs, errors.New("MONGODB_URI or MONGODB_HOST is required for the mongo store"))
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	switch c.Password.Algorithm {
	case "bcrypt", "argon2id":
	default:
		errs = append(errs, fmt.Errorf("unknown PASSWORD_ALGORITHM %q", c.Password.Algorithm))
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.Log.Format))
	}

	if c.OIDC.Enabled() && (c.OIDC.ClientID == "" || c.OIDC.RedirectURL == "") {
		errs = append(errs, errors.New("OIDC_CLIENT_ID and OIDC_REDIRECT_URL are required when OIDC_ISSUER is set"))
	}

	return errors.Join(errs...)
}

// MongoConnectionString returns MONGODB_URI, or an SRV connection string
// assembled from the user, password and host variables.
func (c StoreConfig) MongoConnectionString() string {
	if c.MongoURI != "" {
		return c.MongoURI
	}
	u := url.URL{
		Scheme:   "mongodb+srv",
		User:     url.UserPassword(c.MongoUser, c.MongoPassword),
		Host:     c.MongoHost,
		Path:     "/",
		RawQuery: "retryWrites=true&w=majority",
	}
	if c.MongoUser == "" {
		u.User = nil
	}
	return u.String()
}
