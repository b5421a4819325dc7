package auth

import (
	"context"

	"millstock/internal/core/id"
)

// OperatorRepository defines operator account storage.
type OperatorRepository interface {
	Create(ctx context.Context, op *Operator) error
	GetByID(ctx context.Context, operatorID id.ID) (*Operator, error)
	GetByEmail(ctx context.Context, email string) (*Operator, error)

	// Update writes account state with optimistic locking.
	Update(ctx context.Context, op *Operator) error

	List(ctx context.Context, filter OperatorFilter) ([]Operator, int, error)

	// Exists checks if an email is already taken.
	Exists(ctx context.Context, email string) (bool, error)
}

// TokenRepository defines refresh token storage.
type TokenRepository interface {
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error

	// GetRefreshToken retrieves a token by its hash.
	GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)

	RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error

	// RevokeAllOperatorTokens revokes every live token of one operator.
	RevokeAllOperatorTokens(ctx context.Context, operatorID id.ID, reason string) error

	// CleanupExpiredTokens removes expired and long-revoked tokens.
	CleanupExpiredTokens(ctx context.Context) (int, error)
}
