package auth_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain/auth"
	"millstock/internal/infrastructure/storage/postgres"
)

// TokenRepo implements auth.TokenRepository over sys_refresh_tokens.
type TokenRepo struct {
	txManager *postgres.TxManager
}

// NewTokenRepo creates a new token repository.
func NewTokenRepo(txManager *postgres.TxManager) *TokenRepo {
	return &TokenRepo{txManager: txManager}
}

func (r *TokenRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// SaveRefreshToken saves a refresh token.
func (r *TokenRepo) SaveRefreshToken(ctx context.Context, token *auth.RefreshToken) error {
	query := `
		INSERT INTO sys_refresh_tokens (
			id, operator_id, token_hash, expires_at, created_at,
			user_agent, ip_address
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::inet)
	`

	_, err := r.querier(ctx).Exec(ctx, query,
		token.ID, token.OperatorID, token.TokenHash, token.ExpiresAt,
		token.CreatedAt, token.UserAgent, token.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}

	return nil
}

// GetRefreshToken retrieves a refresh token by hash.
func (r *TokenRepo) GetRefreshToken(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	query := `
		SELECT id, operator_id, token_hash, expires_at, created_at,
			   revoked_at, COALESCE(revoked_reason, '')
		FROM sys_refresh_tokens WHERE token_hash = $1
	`

	var token auth.RefreshToken
	err := r.querier(ctx).QueryRow(ctx, query, tokenHash).Scan(
		&token.ID, &token.OperatorID, &token.TokenHash, &token.ExpiresAt,
		&token.CreatedAt, &token.RevokedAt, &token.RevokedReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("token", "")
	}
	if err != nil {
		return nil, fmt.Errorf("query token: %w", err)
	}

	return &token, nil
}

// RevokeRefreshToken revokes one refresh token.
func (r *TokenRepo) RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error {
	query := `UPDATE sys_refresh_tokens SET revoked_at = NOW(), revoked_reason = $2 WHERE id = $1`
	if _, err := r.querier(ctx).Exec(ctx, query, tokenID, reason); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeAllOperatorTokens revokes every live token of one operator.
func (r *TokenRepo) RevokeAllOperatorTokens(ctx context.Context, operatorID id.ID, reason string) error {
	query := `
		UPDATE sys_refresh_tokens SET revoked_at = NOW(), revoked_reason = $2
		WHERE operator_id = $1 AND revoked_at IS NULL
	`
	if _, err := r.querier(ctx).Exec(ctx, query, operatorID, reason); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}
	return nil
}

// CleanupExpiredTokens removes expired and long-revoked tokens.
func (r *TokenRepo) CleanupExpiredTokens(ctx context.Context) (int, error) {
	query := `
		DELETE FROM sys_refresh_tokens
		WHERE expires_at < NOW() OR revoked_at < NOW() - INTERVAL '7 days'
	`
	result, err := r.querier(ctx).Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("cleanup tokens: %w", err)
	}

	return int(result.RowsAffected()), nil
}

var _ auth.TokenRepository = (*TokenRepo)(nil)
