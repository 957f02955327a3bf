package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/config"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain"
)

func testManager() *JWTManager {
	return NewJWTManager(config.JWTConfig{
		Secret:          "0123456789abcdef0123456789abcdef",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		Issuer:          "dentalsync-test",
	})
}

func TestTokenRoundTrip(t *testing.T) {
	m := testManager()
	in := &domain.Claims{UserID: uuid.New(), Username: "recepcion", Role: domain.RoleAdmin}

	pair, err := m.GenerateTokenPair(in)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if pair.TokenType != "Bearer" {
		t.Fatalf("expected Bearer token type, got %q", pair.TokenType)
	}

	got, err := m.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if got.UserID != in.UserID || got.Username != in.Username || got.Role != in.Role {
		t.Fatalf("expected claims %+v, got %+v", in, got)
	}

	if _, err := m.ValidateAccessToken(pair.RefreshToken); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("expected ErrTokenTypeMismatch for a refresh token, got %v", err)
	}
	if _, err := m.ValidateRefreshToken(pair.RefreshToken); err != nil {
		t.Fatalf("expected refresh token to validate, got %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	m := testManager()
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	pair, err := m.GenerateTokenPair(&domain.Claims{UserID: uuid.New(), Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	m.now = time.Now
	if _, err := m.ValidateAccessToken(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenFromOtherSecret(t *testing.T) {
	pair, _ := testManager().GenerateTokenPair(&domain.Claims{UserID: uuid.New(), Role: domain.RoleUser})

	other := NewJWTManager(config.JWTConfig{Secret: "another-secret-another-secret-xx", Issuer: "dentalsync-test"})
	if _, err := other.ValidateAccessToken(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestClockSkewTolerated(t *testing.T) {
	m := testManager()
	m.now = func() time.Time { return time.Now().Add(5 * time.Second) }
	pair, err := m.GenerateTokenPair(&domain.Claims{UserID: uuid.New(), Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	m.now = time.Now

	if _, err := m.ValidateAccessToken(pair.AccessToken); err != nil {
		t.Fatalf("expected a token issued slightly ahead to validate, got %v", err)
	}
}

func TestUnknownRoleRejected(t *testing.T) {
	m := testManager()
	pair, err := m.GenerateTokenPair(&domain.Claims{UserID: uuid.New(), Role: domain.Role("root")})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if _, err := m.ValidateAccessToken(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for an unknown role, got %v", err)
	}
}
