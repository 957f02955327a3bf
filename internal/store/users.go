package store

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

// UserStore keeps the clinic operators seeded from configuration. Usernames
// are matched case-insensitively.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*domain.User)}
}

func (s *UserStore) Add(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[strings.ToLower(u.Username)] = u
}

// GetByUsername returns a copy of the stored user.
func (s *UserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.ToLower(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

// Save replaces the stored user with u.
func (s *UserStore) Save(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Username)
	if _, ok := s.users[key]; !ok {
		return ErrUserNotFound
	}
	cp := *u
	s.users[key] = &cp
	return nil
}
