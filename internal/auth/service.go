package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/securenotify/notify-core/internal/users"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// DefaultPermissions are granted to self-registered accounts. They may
// revoke keys they own; everything else needs an admin grant.
var DefaultPermissions = []string{"keys:revoke"}

// UserStore is the slice of the users store the login and signup flows
// need.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (users.User, error)
	Create(ctx context.Context, username, password, role string, permissions []string) (users.User, error)
}

type Service struct {
	store  UserStore
	config Config
}

func NewService(store UserStore, config Config) *Service {
	return &Service{store: store, config: config}
}

// Login verifies a username/password pair and issues a JWT carrying
// the user's role and permissions.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("query user: %w", err)
	}

	if !users.CheckPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.config, user.ID, user.Username, user.Role, user.Permissions)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// Register creates a service account with the default role and
// permission set.
func (s *Service) Register(ctx context.Context, username, password string) (users.User, error) {
	return s.store.Create(ctx, username, password, "user", DefaultPermissions)
}
