// Package config loads the storefront configuration.
//
// Sources, lowest to highest priority:
//  1. built-in defaults (setDefaults)
//  2. an optional YAML file (config.yaml in "." or "./config", or an explicit path)
//  3. environment variables: STOREFRONT_ + the key upper-cased with "." → "_",
//     e.g. database.ready_timeout → STOREFRONT_DATABASE_READY_TIMEOUT
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "STOREFRONT"

type (
	Config struct {
		HTTP     HTTP
		Database Database
		Auth     Auth
		Seed     Seed
		Log      Log
	}

	HTTP struct {
		Host            string
		Port            int
		ShutdownTimeout time.Duration
	}

	Database struct {
		Dir              string // directory holding <Name>.db
		Name             string // logical database name
		Path             string // overrides Dir/Name; ":memory:" for throwaway runs
		ReadyTimeout     time.Duration
		StatementTimeout time.Duration
		AutoInitialize   bool
	}

	Auth struct {
		JWTSecret    string
		TokenTTL     time.Duration
		BcryptCost   int
		CookieSecure bool // set to false for local dev without HTTPS
	}

	// Seed holds the credentials of the baseline accounts. Empty passwords
	// fall back to the well-known default and log a warning.
	Seed struct {
		AdminEmail       string
		AdminPassword    string
		CustomerEmail    string
		CustomerPassword string
	}

	Log struct {
		Level  string // debug, info, warn, error
		Format string // text, json
	}
)

// Addr returns the listen address (host:port).
func (h HTTP) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// SlogLevel parses Level, defaulting to info.
func (l Log) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.shutdown_timeout", "30s")

	v.SetDefault("database.dir", "./data")
	v.SetDefault("database.name", "vinyls_db")
	v.SetDefault("database.path", "")
	v.SetDefault("database.ready_timeout", "5s")
	v.SetDefault("database.statement_timeout", "5s")
	v.SetDefault("database.auto_initialize", false)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.cookie_secure", true)

	v.SetDefault("seed.admin_email", "admin@vinyls.local")
	v.SetDefault("seed.admin_password", "")
	v.SetDefault("seed.customer_email", "cliente@vinyls.local")
	v.SetDefault("seed.customer_password", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration. path names a config file; when empty, an
// optional config.yaml is looked up in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: reading config file: %w", err)
			}
		}
	}

	cfg := &Config{
		HTTP: HTTP{
			Host:            v.GetString("http.host"),
			Port:            v.GetInt("http.port"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Database: Database{
			Dir:              v.GetString("database.dir"),
			Name:             v.GetString("database.name"),
			Path:             v.GetString("database.path"),
			ReadyTimeout:     v.GetDuration("database.ready_timeout"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
			AutoInitialize:   v.GetBool("database.auto_initialize"),
		},
		Auth: Auth{
			JWTSecret:    v.GetString("auth.jwt_secret"),
			TokenTTL:     v.GetDuration("auth.token_ttl"),
			BcryptCost:   v.GetInt("auth.bcrypt_cost"),
			CookieSecure: v.GetBool("auth.cookie_secure"),
		},
		Seed: Seed{
			AdminEmail:       v.GetString("seed.admin_email"),
			AdminPassword:    v.GetString("seed.admin_password"),
			CustomerEmail:    v.GetString("seed.customer_email"),
			CustomerPassword: v.GetString("seed.customer_password"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the rest of the program cannot work with.
// The JWT secret is not checked here: the server needs it, dbtool does not.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.Database.Path == "" && c.Database.Dir == "" {
		errs = append(errs, errors.New("database.dir or database.path is required"))
	}
	if c.Database.ReadyTimeout <= 0 {
		errs = append(errs, errors.New("database.ready_timeout must be positive"))
	}
	if c.Database.StatementTimeout <= 0 {
		errs = append(errs, errors.New("database.statement_timeout must be positive"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost %d must be between 4 and 31", c.Auth.BcryptCost))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
