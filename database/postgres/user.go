package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/model"
)

func (s *Store) CreateUser(ctx context.Context, username, password string, role model.Role) (int64, error) {
	query := `INSERT INTO users (username, password, role) VALUES ($1, $2, $3) RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query, username, password, string(role)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, database.ErrDuplicateUsername
		}
		return 0, database.Unavailable("create user", err)
	}
	return id, nil
}

func (s *Store) FindUser(ctx context.Context, username, password string) (*model.User, error) {
	query := `SELECT id, username, password, role FROM users WHERE username = $1 AND password = $2`
	return s.scanUser("find user", s.db.QueryRowContext(ctx, query, username, password))
}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT id, username, password, role FROM users WHERE id = $1`
	return s.scanUser("get user", s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) scanUser(op string, row *sql.Row) (*model.User, error) {
	var (
		user model.User
		role string
	)
	err := row.Scan(&user.Id, &user.Username, &user.Password, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, database.Unavailable(op, err)
	}
	user.Role = model.Role(role)
	return &user, nil
}
