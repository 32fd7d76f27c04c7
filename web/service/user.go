package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/model"
	"github.com/mhsanaei/csc-portal/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMalformedInput     = errors.New("malformed input")
)

// UserService registers accounts and checks credentials. Passwords are stored
// and compared as given.
type UserService struct {
	store database.Store
}

func NewUserService(store database.Store) *UserService {
	return &UserService{store: store}
}

// Register creates an account. An empty role means model.RoleUser.
func (s *UserService) Register(ctx context.Context, username, password string, role model.Role) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return 0, fmt.Errorf("%w: username and password are required", ErrMalformedInput)
	}
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return 0, fmt.Errorf("%w: unknown role %q", ErrMalformedInput, role)
	}

	id, err := s.store.CreateUser(ctx, username, password, role)
	if err != nil {
		if !errors.Is(err, database.ErrDuplicateUsername) {
			logger.Warning("register user failed:", err)
		}
		return 0, err
	}
	logger.Infof("user %q registered with id %d as %s", username, id, role)
	return id, nil
}

func (s *UserService) Login(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.store.FindUser(ctx, strings.TrimSpace(username), password)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		logger.Warning("check user err:", err)
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.store.GetUser(ctx, id)
}
