package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securenotify/notify-core/internal/users"
)

type fakeUserStore struct {
	accounts map[string]users.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{accounts: make(map[string]users.User)}
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (users.User, error) {
	user, ok := f.accounts[username]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) Create(_ context.Context, username, password, role string, permissions []string) (users.User, error) {
	if _, ok := f.accounts[username]; ok {
		return users.User{}, users.ErrUsernameExists
	}
	hash, err := users.HashPassword(password)
	if err != nil {
		return users.User{}, err
	}
	user := users.User{
		ID:           "id-" + username,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Permissions:  permissions,
	}
	f.accounts[username] = user
	return user, nil
}

func TestService_LoginIssuesToken(t *testing.T) {
	store := newFakeUserStore()
	service := NewService(store, Config{Secret: "test-secret", TTL: time.Hour})

	_, err := service.Register(context.Background(), "alice", "password123")
	require.NoError(t, err)

	token, err := service.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)

	claims, err := ValidateToken("test-secret", token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, DefaultPermissions, claims.Permissions)
}

func TestService_LoginWrongPassword(t *testing.T) {
	store := newFakeUserStore()
	service := NewService(store, Config{Secret: "test-secret", TTL: time.Hour})

	_, err := service.Register(context.Background(), "alice", "password123")
	require.NoError(t, err)

	_, err = service.Login(context.Background(), "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_LoginUnknownUser(t *testing.T) {
	service := NewService(newFakeUserStore(), Config{Secret: "test-secret", TTL: time.Hour})

	_, err := service.Login(context.Background(), "nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_RegisterDuplicate(t *testing.T) {
	store := newFakeUserStore()
	service := NewService(store, Config{Secret: "test-secret", TTL: time.Hour})

	_, err := service.Register(context.Background(), "alice", "password123")
	require.NoError(t, err)

	_, err = service.Register(context.Background(), "alice", "password123")
	assert.ErrorIs(t, err, users.ErrUsernameExists)
}
