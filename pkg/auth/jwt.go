package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/config"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain"
)

// Token kinds travel in the audience claim, so a refresh token is rejected
// by the access parser through the standard aud check.
const (
	audienceAccess  = "dentalsync-api"
	audienceRefresh = "dentalsync-refresh"
)

// clockSkew tolerates the clinic PCs' clocks drifting from the server's.
const clockSkew = 10 * time.Second

var (
	ErrTokenExpired      = errors.New("token has expired")
	ErrTokenInvalid      = errors.New("token is invalid")
	ErrTokenTypeMismatch = errors.New("wrong token type")
)

type staffClaims struct {
	jwt.RegisteredClaims
	Username string `json:"usr"`
	Role     string `json:"role"`
}

type JWTManager struct {
	cfg     config.JWTConfig
	key     []byte
	access  *jwt.Parser
	refresh *jwt.Parser
	now     func() time.Time
}

func NewJWTManager(cfg config.JWTConfig) *JWTManager {
	m := &JWTManager{cfg: cfg, key: []byte(cfg.Secret), now: time.Now}
	m.access = m.parser(audienceAccess)
	m.refresh = m.parser(audienceRefresh)
	return m
}

func (m *JWTManager) parser(audience string) *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
}

func (m *JWTManager) GenerateTokenPair(claims *domain.Claims) (*domain.TokenPair, error) {
	now := m.now()

	access, err := m.sign(claims, audienceAccess, now, m.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}
	refresh, err := m.sign(claims, audienceRefresh, now, m.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(m.cfg.AccessTokenTTL),
		TokenType:    "Bearer",
	}, nil
}

func (m *JWTManager) ValidateAccessToken(token string) (*domain.Claims, error) {
	return m.validate(m.access, token)
}

func (m *JWTManager) ValidateRefreshToken(token string) (*domain.Claims, error) {
	return m.validate(m.refresh, token)
}

func (m *JWTManager) sign(claims *domain.Claims, audience string, now time.Time, ttl time.Duration) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, staffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   claims.UserID.String(),
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Username: claims.Username,
		Role:     string(claims.Role),
	}).SignedString(m.key)
}

func (m *JWTManager) validate(p *jwt.Parser, token string) (*domain.Claims, error) {
	var sc staffClaims
	if _, err := p.ParseWithClaims(token, &sc, func(*jwt.Token) (any, error) { return m.key, nil }); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, ErrTokenTypeMismatch
		}
		return nil, ErrTokenInvalid
	}

	userID, err := uuid.Parse(sc.Subject)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	role := domain.Role(sc.Role)
	if !role.IsValid() {
		return nil, ErrTokenInvalid
	}

	return &domain.Claims{UserID: userID, Username: sc.Username, Role: role}, nil
}
