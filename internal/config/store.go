package config

import (
	sqliteRepo "github.com/sakif/vinyl-storefront/internal/repository/sqlite"
)

// Store returns the storage layer configuration. The server and dbtool both
// build their *sqlite.DB from it, so they always open the same file.
func (c *Config) Store() sqliteRepo.Config {
	return sqliteRepo.Config{
		Dir:              c.Database.Dir,
		Name:             c.Database.Name,
		Path:             c.Database.Path,
		ReadyTimeout:     c.Database.ReadyTimeout,
		StatementTimeout: c.Database.StatementTimeout,
		AutoInitialize:   c.Database.AutoInitialize,
		Seed: sqliteRepo.SeedConfig{
			AdminEmail:       c.Seed.AdminEmail,
			AdminPassword:    c.Seed.AdminPassword,
			CustomerEmail:    c.Seed.CustomerEmail,
			CustomerPassword: c.Seed.CustomerPassword,
		},
	}
}
