package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/shopswift-api/common/errors"
	"github.com/yashrajoria/shopswift-api/models"
	"github.com/yashrajoria/shopswift-api/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	ResetTokenTTL     = 15 * time.Minute
	minPasswordLength = 8
	resetKeyPrefix    = "reset:"
)

// AuthService registers users, logs them in and runs the password reset
// flow.
type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	// ForgotPassword returns the reset token only when tokens are exposed
	// (non-production); otherwise it returns "".
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type authServiceImpl struct {
	users       repository.UserRepository
	tokens      *TokenService
	store       TokenStore
	adminEmails map[string]bool
	exposeReset bool
	logger      *zap.Logger
}

// NewAuthService creates an AuthService. Accounts registered with one of
// adminEmails get the admin role.
func NewAuthService(users repository.UserRepository, tokens *TokenService, store TokenStore, adminEmails []string, exposeReset bool, logger *zap.Logger) AuthService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = true
		}
	}
	return &authServiceImpl{
		users:       users,
		tokens:      tokens,
		store:       store,
		adminEmails: admins,
		exposeReset: exposeReset,
		logger:      logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authServiceImpl) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.Validation("name and email are required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperrors.Validation("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	role := models.RoleUser
	if s.adminEmails[email] {
		role = models.RoleAdmin
	}
	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("email already registered")
		}
		return nil, apperrors.Internal("Failed to create user", err)
	}

	s.logger.Info("User registered", zap.Uint("user_id", user.ID), zap.String("role", user.Role))
	return s.issue(user)
}

func (s *authServiceImpl) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, apperrors.Internal("Failed to load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	return s.issue(user)
}

func (s *authServiceImpl) issue(user *models.User) (*models.AuthResponse, error) {
	token, ttl, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token", err)
	}
	return &models.AuthResponse{AccessToken: token, ExpiresIn: int64(ttl.Seconds()), User: user}, nil
}

// ForgotPassword stores a single-use reset token for the account. Unknown
// emails succeed silently.
func (s *authServiceImpl) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if repository.IsNotFound(err) {
			return "", nil
		}
		return "", apperrors.Internal("Failed to load user", err)
	}

	token := uuid.NewString()
	if err := s.store.Set(ctx, resetKeyPrefix+token, strconv.FormatUint(uint64(user.ID), 10), ResetTokenTTL); err != nil {
		return "", apperrors.Internal("Failed to store reset token", err)
	}
	s.logger.Info("Password reset requested", zap.Uint("user_id", user.ID))

	if !s.exposeReset {
		return "", nil
	}
	return token, nil
}

// ResetPassword consumes the token and sets the new password.
func (s *authServiceImpl) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.Validation("password must be at least %d characters", minPasswordLength)
	}

	key := resetKeyPrefix + token
	v, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return apperrors.Validation("invalid or expired reset token")
		}
		return apperrors.Internal("Failed to read reset token", err)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return apperrors.Internal("Failed to consume reset token", err)
	}

	userID, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return apperrors.Internal("Corrupt reset token", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Internal("Failed to hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, uint(userID), string(hash)); err != nil {
		if repository.IsNotFound(err) {
			return apperrors.Validation("invalid or expired reset token")
		}
		return apperrors.Internal("Failed to update password", err)
	}

	s.logger.Info("Password reset", zap.Uint("user_id", uint(userID)))
	return nil
}
