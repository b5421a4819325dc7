// Package auth provides operator authentication: bcrypt credentials,
// short-lived HS256 access tokens, rotating refresh tokens. Authorization
// is a single role claim; admin gates maintenance and catalog mutation.
package auth

import (
	"context"
	"strings"
	"time"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/id"
)

// Operator is a mill back-office account.
type Operator struct {
	ID           id.ID  `db:"id" json:"id"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
	Name         string `db:"name" json:"name,omitempty"`

	// Role is operator or admin; there is no finer permission model.
	Role string `db:"role" json:"role"`

	IsActive            bool       `db:"is_active" json:"isActive"`
	LastLoginAt         *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	Version   int       `db:"version" json:"version"`
}

// NewOperator creates an active operator account.
func NewOperator(email, passwordHash, role string) *Operator {
	now := time.Now().UTC()
	return &Operator{
		ID:           id.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
}

// ValidRole reports whether the role is one of the known values.
func ValidRole(role string) bool {
	return role == appctx.RoleOperator || role == appctx.RoleAdmin
}

// Validate validates operator data.
func (o *Operator) Validate(ctx context.Context) error {
	if o.Email == "" {
		return apperror.NewValidation("email is required").WithDetail("field", "email")
	}
	if !ValidRole(o.Role) {
		return apperror.NewValidation("unknown role").
			WithDetail("field", "role").
			WithDetail("value", o.Role)
	}
	return nil
}

// IsLocked reports whether the account is temporarily locked.
func (o *Operator) IsLocked() bool {
	return o.LockedUntil != nil && time.Now().Before(*o.LockedUntil)
}

// CanLogin checks account state before credential verification.
func (o *Operator) CanLogin() error {
	if !o.IsActive {
		return apperror.NewForbidden("account is disabled")
	}
	if o.IsLocked() {
		return apperror.NewForbidden("account is temporarily locked")
	}
	return nil
}

// RecordFailedLogin counts the failure and locks the account at the cap.
func (o *Operator) RecordFailedLogin(maxAttempts int, lockDuration time.Duration) {
	o.FailedLoginAttempts++
	if o.FailedLoginAttempts >= maxAttempts {
		lockUntil := time.Now().Add(lockDuration)
		o.LockedUntil = &lockUntil
	}
}

// RecordSuccessfulLogin resets the failure counter.
func (o *Operator) RecordSuccessfulLogin() {
	o.FailedLoginAttempts = 0
	o.LockedUntil = nil
	now := time.Now().UTC()
	o.LastLoginAt = &now
}

// RefreshToken is one opaque refresh credential, stored hashed. The row id
// doubles as the session id carried in access token claims.
type RefreshToken struct {
	ID            id.ID      `db:"id"`
	OperatorID    id.ID      `db:"operator_id"`
	TokenHash     string     `db:"token_hash"`
	ExpiresAt     time.Time  `db:"expires_at"`
	CreatedAt     time.Time  `db:"created_at"`
	RevokedAt     *time.Time `db:"revoked_at"`
	RevokedReason string     `db:"revoked_reason"`
	UserAgent     string     `db:"user_agent"`
	IPAddress     string     `db:"ip_address"`
}

// IsValid reports whether the token can still be exchanged.
func (t *RefreshToken) IsValid() bool {
	if t.RevokedAt != nil {
		return false
	}
	return time.Now().Before(t.ExpiresAt)
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenType    string    `json:"tokenType"`
}

// Credentials for login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateOperatorInput describes a new account. Admin only.
type CreateOperatorInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
}

// OperatorFilter for account listings.
type OperatorFilter struct {
	Search   string
	IsActive *bool
	Role     string
	Limit    int
	Offset   int
}
