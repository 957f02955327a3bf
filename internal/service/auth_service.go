package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/config"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account is temporarily locked due to multiple failed login attempts")
)

const maxFailedAttempts = 5

const lockDuration = 15 * time.Minute

type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Save(ctx context.Context, u *domain.User) error
}

type AuthService struct {
	userRepo   UserRepository
	jwtManager *auth.JWTManager
	log        *zap.Logger
	// dummyHash is compared against when the username is unknown.
	dummyHash []byte
}

func NewAuthService(userRepo UserRepository, jwtManager *auth.JWTManager, log *zap.Logger) *AuthService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("dentalsync-dummy-password"), bcrypt.DefaultCost)
	return &AuthService{userRepo: userRepo, jwtManager: jwtManager, log: log, dummyHash: dummy}
}

// SeedUsers hashes the configured clinic operators into users.
func SeedUsers(seeds []config.UserSeed, cost int) ([]*domain.User, error) {
	users := make([]*domain.User, 0, len(seeds))
	for _, seed := range seeds {
		role := domain.Role(seed.Role)
		if !role.IsValid() {
			return nil, fmt.Errorf("seeding %s: unknown role %q", seed.Username, seed.Role)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hashing password for %s: %w", seed.Username, err)
		}
		users = append(users, &domain.User{
			ID:           uuid.New(),
			Username:     seed.Username,
			PasswordHash: string(hash),
			Role:         role,
		})
	}
	return users, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string, ip string) (*domain.TokenPair, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		// Same bcrypt cost as a real check, so response time does not reveal
		// whether the username exists.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if user.IsLocked() {
		return nil, ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordFailure(ctx, user)
		s.log.Warn("failed login attempt",
			zap.String("username", username),
			zap.String("ip", ip),
			zap.Int("failed_count", user.FailedLoginCount),
		)
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.FailedLoginCount = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	if err := s.userRepo.Save(ctx, user); err != nil {
		s.log.Warn("failed to record login", zap.Error(err))
	}

	pair, err := s.jwtManager.GenerateTokenPair(claimsFor(user))
	if err != nil {
		s.log.Error("failed to generate token pair", zap.Error(err))
		return nil, fmt.Errorf("generating tokens: %w", err)
	}

	s.log.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", ip),
	)

	return pair, nil
}

func (s *AuthService) recordFailure(ctx context.Context, user *domain.User) {
	user.FailedLoginCount++
	if user.FailedLoginCount >= maxFailedAttempts {
		until := time.Now().Add(lockDuration)
		user.LockedUntil = &until
		user.FailedLoginCount = 0
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		s.log.Warn("failed to record login failure", zap.Error(err))
	}
}

// RefreshToken issues a new token pair given a valid refresh token.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// The user may have been removed from configuration since.
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil || user.IsLocked() {
		return nil, ErrInvalidCredentials
	}

	return s.jwtManager.GenerateTokenPair(claimsFor(user))
}

func claimsFor(u *domain.User) *domain.Claims {
	return &domain.Claims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
	}
}
