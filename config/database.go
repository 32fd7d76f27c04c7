package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DatabaseType represents the type of database
type DatabaseType string

const (
	DatabaseTypeSQLite     DatabaseType = "sqlite"
	DatabaseTypePostgreSQL DatabaseType = "postgres"
	DatabaseTypeRedis      DatabaseType = "redis"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type     DatabaseType   `json:"type" toml:"type" env:"TYPE" envDefault:"sqlite"`
	SQLite   SQLiteConfig   `json:"sqlite" toml:"sqlite" envPrefix:"SQLITE_"`
	Postgres PostgresConfig `json:"postgres" toml:"postgres" envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `json:"redis" toml:"redis" envPrefix:"REDIS_"`
}

// SQLiteConfig holds SQLite specific configuration
type SQLiteConfig struct {
	Path string `json:"path" toml:"path" env:"PATH"`
}

// PostgresConfig holds PostgreSQL specific configuration
type PostgresConfig struct {
	Host     string `json:"host" toml:"host" env:"HOST" envDefault:"localhost"`
	Port     int    `json:"port" toml:"port" env:"PORT" envDefault:"5432"`
	Database string `json:"database" toml:"database" env:"DATABASE" envDefault:"csc_portal"`
	Username string `json:"username" toml:"username" env:"USERNAME" envDefault:"csc_portal"`
	Password string `json:"password" toml:"password" env:"PASSWORD"`
	SSLMode  string `json:"sslMode" toml:"sslMode" env:"SSL_MODE" envDefault:"disable"`
	TimeZone string `json:"timeZone" toml:"timeZone" env:"TIME_ZONE" envDefault:"UTC"`
}

// RedisConfig holds the managed Redis service configuration
type RedisConfig struct {
	Addr     string `json:"addr" toml:"addr" env:"ADDR" envDefault:"localhost:6379"`
	Password string `json:"password" toml:"password" env:"PASSWORD"`
	DB       int    `json:"db" toml:"db" env:"DB" envDefault:"0"`
	UseTLS   bool   `json:"useTLS" toml:"useTLS" env:"USE_TLS" envDefault:"false"`
	Prefix   string `json:"prefix" toml:"prefix" env:"PREFIX" envDefault:"csc:"`
}

// GetDSN returns the data source name for the database
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case DatabaseTypePostgreSQL:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
			c.Postgres.Host,
			c.Postgres.Username,
			c.Postgres.Password,
			c.Postgres.Database,
			c.Postgres.Port,
			c.Postgres.SSLMode,
			c.Postgres.TimeZone,
		)
	case DatabaseTypeRedis:
		return c.Redis.Addr
	default:
		return c.sqlitePath()
	}
}

func (c *DatabaseConfig) sqlitePath() string {
	if c.SQLite.Path == "" {
		return getDefaultSQLitePath()
	}
	return c.SQLite.Path
}

// getDefaultSQLitePath returns the default SQLite database path
func getDefaultSQLitePath() string {
	if IsDebug() {
		return "db/" + GetName() + ".db"
	}
	return "/etc/" + GetName() + "/" + GetName() + ".db"
}

// ValidateConfig validates the database configuration
func (c *DatabaseConfig) ValidateConfig() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			c.SQLite.Path = getDefaultSQLitePath()
		}
	case DatabaseTypePostgreSQL:
		if c.Postgres.Host == "" {
			return fmt.Errorf("PostgreSQL host cannot be empty")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("PostgreSQL database name cannot be empty")
		}
		if c.Postgres.Username == "" {
			return fmt.Errorf("PostgreSQL username cannot be empty")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			return fmt.Errorf("PostgreSQL port must be between 1 and 65535")
		}
	case DatabaseTypeRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("Redis address cannot be empty")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("Redis database index cannot be negative")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

// IsPostgreSQL returns true if the database type is PostgreSQL
func (c *DatabaseConfig) IsPostgreSQL() bool {
	return c.Type == DatabaseTypePostgreSQL
}

// IsSQLite returns true if the database type is SQLite
func (c *DatabaseConfig) IsSQLite() bool {
	return c.Type == DatabaseTypeSQLite
}

// IsRedis returns true if the database type is Redis
func (c *DatabaseConfig) IsRedis() bool {
	return c.Type == DatabaseTypeRedis
}

// EnsureDirectoryExists ensures the directory for SQLite database exists
func (c *DatabaseConfig) EnsureDirectoryExists() error {
	if c.Type == DatabaseTypeSQLite {
		dir := filepath.Dir(c.sqlitePath())
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
