package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/id"
	"millstock/internal/core/tx"
	"millstock/pkg/logger"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	MaxLoginAttempts   int
	LockDuration       time.Duration
	PasswordMinLength  int
	RefreshTokenExpiry time.Duration
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:   5,
		LockDuration:       15 * time.Minute,
		PasswordMinLength:  8,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
	}
}

// Service provides operator authentication.
type Service struct {
	operators  OperatorRepository
	tokens     TokenRepository
	txManager  tx.Manager
	jwtService *JWTService
	config     ServiceConfig
}

// NewService creates a new auth service.
func NewService(
	operators OperatorRepository,
	tokens TokenRepository,
	txManager tx.Manager,
	jwtService *JWTService,
	config ServiceConfig,
) *Service {
	return &Service{
		operators:  operators,
		tokens:     tokens,
		txManager:  txManager,
		jwtService: jwtService,
		config:     config,
	}
}

// Login verifies credentials and returns a token pair. Failed attempts count
// toward a temporary lock; the caller cannot distinguish a wrong password
// from an unknown email.
func (s *Service) Login(ctx context.Context, creds Credentials) (*TokenPair, *Operator, error) {
	op, err := s.operators.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
	if err != nil {
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}

	if err := op.CanLogin(); err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(creds.Password)); err != nil {
		op.RecordFailedLogin(s.config.MaxLoginAttempts, s.config.LockDuration)
		if uerr := s.operators.Update(ctx, op); uerr != nil {
			logger.Warn(ctx, "failed to record login failure", "error", uerr)
		}
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}

	op.RecordSuccessfulLogin()
	if err := s.operators.Update(ctx, op); err != nil {
		return nil, nil, fmt.Errorf("record login: %w", err)
	}

	tokens, err := s.issueTokenPair(ctx, op)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	logger.Info(ctx, "operator logged in",
		"operator_id", op.ID,
		"email", op.Email,
	)

	return tokens, op, nil
}

// RefreshToken exchanges a live refresh token for a new pair, revoking the
// old one. A revoked or expired token is rejected, never renewed.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.tokens.GetRefreshToken(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}
	if !token.IsValid() {
		return nil, apperror.NewUnauthorized("refresh token expired or revoked")
	}

	op, err := s.operators.GetByID(ctx, token.OperatorID)
	if err != nil {
		return nil, apperror.NewUnauthorized("account not found")
	}
	if err := op.CanLogin(); err != nil {
		return nil, err
	}

	var pair *TokenPair
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.tokens.RevokeRefreshToken(ctx, token.ID, "refreshed"); err != nil {
			return fmt.Errorf("revoke old token: %w", err)
		}
		pair, err = s.issueTokenPair(ctx, op)
		return err
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// Logout revokes all the operator's refresh tokens.
func (s *Service) Logout(ctx context.Context, operatorID id.ID) error {
	return s.tokens.RevokeAllOperatorTokens(ctx, operatorID, "logout")
}

// CreateOperator registers a new account. Admin only; there is no open
// registration.
func (s *Service) CreateOperator(ctx context.Context, input CreateOperatorInput) (*Operator, error) {
	if !appctx.IsAdmin(ctx) {
		return nil, apperror.NewForbidden("creating operators requires the admin role")
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperror.NewValidation("email is required").WithDetail("field", "email")
	}
	if len(input.Password) < s.config.PasswordMinLength {
		return nil, apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength),
		).WithDetail("field", "password")
	}
	role := input.Role
	if role == "" {
		role = appctx.RoleOperator
	}
	if !ValidRole(role) {
		return nil, apperror.NewValidation("unknown role").
			WithDetail("field", "role").
			WithDetail("value", input.Role)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	op := NewOperator(email, string(passwordHash), role)
	op.Name = strings.TrimSpace(input.Name)

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.operators.Exists(ctx, email)
		if err != nil {
			return fmt.Errorf("check email exists: %w", err)
		}
		if exists {
			return apperror.NewConflict("email already registered").WithDetail("email", email)
		}
		return s.operators.Create(ctx, op)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "operator created",
		"operator_id", op.ID,
		"email", op.Email,
		"role", op.Role,
	)

	return op, nil
}

// SetRole changes an account's role. Admin only.
func (s *Service) SetRole(ctx context.Context, operatorID id.ID, role string) error {
	if !appctx.IsAdmin(ctx) {
		return apperror.NewForbidden("changing roles requires the admin role")
	}
	if !ValidRole(role) {
		return apperror.NewValidation("unknown role").
			WithDetail("field", "role").
			WithDetail("value", role)
	}

	op, err := s.operators.GetByID(ctx, operatorID)
	if err != nil {
		return err
	}
	if op.Role == role {
		return nil
	}

	op.Role = role
	if err := s.operators.Update(ctx, op); err != nil {
		return err
	}

	logger.Info(ctx, "operator role changed",
		"operator_id", operatorID,
		"role", role,
	)
	return nil
}

// Deactivate disables an account and revokes its sessions. Admin only.
func (s *Service) Deactivate(ctx context.Context, operatorID id.ID) error {
	if !appctx.IsAdmin(ctx) {
		return apperror.NewForbidden("deactivating operators requires the admin role")
	}

	op, err := s.operators.GetByID(ctx, operatorID)
	if err != nil {
		return err
	}
	if !op.IsActive {
		return nil
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		op.IsActive = false
		if err := s.operators.Update(ctx, op); err != nil {
			return err
		}
		return s.tokens.RevokeAllOperatorTokens(ctx, operatorID, "deactivated")
	})
}

// GetByID retrieves one account.
func (s *Service) GetByID(ctx context.Context, operatorID id.ID) (*Operator, error) {
	return s.operators.GetByID(ctx, operatorID)
}

// List retrieves accounts with filtering.
func (s *Service) List(ctx context.Context, filter OperatorFilter) ([]Operator, int, error) {
	return s.operators.List(ctx, filter)
}

// issueTokenPair creates a refresh session and signs an access token bound
// to it.
func (s *Service) issueTokenPair(ctx context.Context, op *Operator) (*TokenPair, error) {
	refreshRaw, err := generateRandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	session := &RefreshToken{
		ID:         id.New(),
		OperatorID: op.ID,
		TokenHash:  hashToken(refreshRaw),
		ExpiresAt:  time.Now().Add(s.config.RefreshTokenExpiry),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.tokens.SaveRefreshToken(ctx, session); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(op, session.ID.String())
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshRaw,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
	}, nil
}

// hashToken creates a SHA256 hash of a token.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// generateRandomToken generates a random token string.
func generateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
