package memstorage

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/makkenzo/device-license-service/internal/domain/user"
	"github.com/makkenzo/device-license-service/internal/ierr"
)

// UserRepository holds the administrator accounts configured at start-up.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*user.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]*user.User),
	}
}

var _ user.Repository = (*UserRepository)(nil)

// AddAdmin registers an administrator with an already bcrypt-hashed password.
func (r *UserRepository) AddAdmin(username, passwordHash string) *user.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := &user.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         user.RoleAdmin,
	}
	r.users[strings.ToLower(username)] = u
	return u
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[strings.ToLower(username)]
	if !ok {
		return nil, ierr.ErrUserNotFound
	}

	userCopy := *u
	return &userCopy, nil
}
