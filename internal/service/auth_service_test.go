package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/config"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/store"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/auth"
)

func newTestAuth(t *testing.T) (*AuthService, *store.UserStore) {
	t.Helper()

	users, err := SeedUsers([]config.UserSeed{
		{Username: "recepcion", Password: "s3cret-pass", Role: "admin"},
	}, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("seeding users: %v", err)
	}
	us := store.NewUserStore()
	for _, u := range users {
		us.Add(u)
	}

	jwtm := auth.NewJWTManager(config.JWTConfig{
		Secret:          "0123456789abcdef0123456789abcdef",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		Issuer:          "dentalsync-test",
	})
	return NewAuthService(us, jwtm, zap.NewNop()), us
}

func TestLogin(t *testing.T) {
	svc, _ := newTestAuth(t)

	pair, err := svc.Login(context.Background(), "Recepcion", "s3cret-pass", "127.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}

	refreshed, err := svc.RefreshToken(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Fatal("expected refreshed access token")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestAuth(t)

	if _, err := svc.Login(context.Background(), "nobody", "whatever", "127.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "recepcion", "wrong", "127.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	svc, us := newTestAuth(t)
	ctx := context.Background()

	for range maxFailedAttempts {
		_, _ = svc.Login(ctx, "recepcion", "wrong", "127.0.0.1")
	}

	if _, err := svc.Login(ctx, "recepcion", "s3cret-pass", "127.0.0.1"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}

	u, _ := us.GetByUsername(ctx, "recepcion")
	if u.LockedUntil == nil || u.LockedUntil.Before(time.Now()) {
		t.Fatalf("expected a future lock, got %v", u.LockedUntil)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newTestAuth(t)

	pair, err := svc.Login(context.Background(), "recepcion", "s3cret-pass", "127.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.RefreshToken(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSeedUsersRole(t *testing.T) {
	users, err := SeedUsers([]config.UserSeed{{Username: "a", Password: "b", Role: "user"}}, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if users[0].Role != domain.RoleUser {
		t.Fatalf("expected role user, got %q", users[0].Role)
	}
	if bcrypt.CompareHashAndPassword([]byte(users[0].PasswordHash), []byte("b")) != nil {
		t.Fatal("expected stored hash to match the seeded password")
	}
}

func TestSeedUsersUnknownRole(t *testing.T) {
	if _, err := SeedUsers([]config.UserSeed{{Username: "a", Password: "b", Role: "root"}}, bcrypt.MinCost); err == nil {
		t.Fatal("expected an error for an unknown role")
	}
}
