// Package backend picks the storage implementation named by the configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/mhsanaei/csc-portal/config"
	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/postgres"
	"github.com/mhsanaei/csc-portal/database/redis"
	"github.com/mhsanaei/csc-portal/database/sqlite"
	"github.com/mhsanaei/csc-portal/logger"
)

// Open connects to the configured backend and prepares its schema.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case config.DatabaseTypeSQLite:
		if err := cfg.EnsureDirectoryExists(); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		logger.Info("Using SQLite database at", cfg.GetDSN())
		return sqlite.Open(cfg.GetDSN(), config.IsDebug())
	case config.DatabaseTypePostgreSQL:
		logger.Infof("Using PostgreSQL database at %s:%d/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database)
		return postgres.Open(ctx, cfg.GetDSN())
	case config.DatabaseTypeRedis:
		return redis.Open(ctx, cfg.Redis)
	}
	return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
}
