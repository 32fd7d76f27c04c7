// Package postgres is the relational network backend of the storage port.
// It talks to PostgreSQL through the pgx database/sql driver and manages
// its schema with goose. Columns use underscore naming.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

var _ database.Store = (*Store)(nil)
var _ database.Migrator = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// New wraps an existing handle without touching the schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the given DSN, checks the connection and applies
// pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, database.Unavailable("open postgres", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, database.Unavailable("ping postgres", err)
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return database.Unavailable("migrate postgres", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return database.Unavailable("ping postgres", errors.New("connection is nil"))
	}
	if err := s.db.PingContext(ctx); err != nil {
		return database.Unavailable("ping postgres", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// gooseLogger routes migration output into the application log.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	logger.Infof(format, v...)
}

func (gooseLogger) Fatalf(format string, v ...any) {
	logger.Errorf(format, v...)
	panic(fmt.Sprintf(format, v...))
}
