// Package auth_repo provides PostgreSQL implementations for auth
// repositories.
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

const operatorColumns = `id, email, password_hash, name, role,
	   is_active, last_login_at, failed_login_attempts, locked_until,
	   created_at, updated_at, version`

// OperatorRepo implements auth.OperatorRepository over sys_operators.
type OperatorRepo struct {
	txManager *postgres.TxManager
}

// NewOperatorRepo creates a new operator repository.
func NewOperatorRepo(txManager *postgres.TxManager) *OperatorRepo {
	return &OperatorRepo{txManager: txManager}
}

func (r *OperatorRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a new operator.
func (r *OperatorRepo) Create(ctx context.Context, op *auth.Operator) error {
	query := `
		INSERT INTO sys_operators (
			id, email, password_hash, name, role,
			is_active, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier(ctx).Exec(ctx, query,
		op.ID, op.Email, op.PasswordHash, op.Name, op.Role,
		op.IsActive, op.CreatedAt, op.UpdatedAt, op.Version,
	)
	if err != nil {
		return fmt.Errorf("insert operator: %w", err)
	}

	return nil
}

func (r *OperatorRepo) scanOperator(row pgx.Row) (*auth.Operator, error) {
	var op auth.Operator
	err := row.Scan(
		&op.ID, &op.Email, &op.PasswordHash, &op.Name, &op.Role,
		&op.IsActive, &op.LastLoginAt, &op.FailedLoginAttempts, &op.LockedUntil,
		&op.CreatedAt, &op.UpdatedAt, &op.Version,
	)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// GetByID retrieves an operator by id.
func (r *OperatorRepo) GetByID(ctx context.Context, operatorID id.ID) (*auth.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM sys_operators WHERE id = $1`

	op, err := r.scanOperator(r.querier(ctx).QueryRow(ctx, query, operatorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("operator", operatorID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("query operator: %w", err)
	}

	return op, nil
}

// GetByEmail retrieves an operator by email.
func (r *OperatorRepo) GetByEmail(ctx context.Context, email string) (*auth.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM sys_operators WHERE email = $1`

	op, err := r.scanOperator(r.querier(ctx).QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("operator", email)
	}
	if err != nil {
		return nil, fmt.Errorf("query operator: %w", err)
	}

	return op, nil
}

// Update writes account state with optimistic locking.
func (r *OperatorRepo) Update(ctx context.Context, op *auth.Operator) error {
	query := `
		UPDATE sys_operators SET
			name = $2,
			role = $3,
			is_active = $4,
			last_login_at = $5,
			failed_login_attempts = $6,
			locked_until = $7,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $1 AND version = $8
	`

	result, err := r.querier(ctx).Exec(ctx, query,
		op.ID, op.Name, op.Role, op.IsActive,
		op.LastLoginAt, op.FailedLoginAttempts, op.LockedUntil,
		op.Version,
	)
	if err != nil {
		return fmt.Errorf("update operator: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("operator", op.ID)
	}

	op.Version++
	return nil
}

// List retrieves operators with filtering.
func (r *OperatorRepo) List(ctx context.Context, filter auth.OperatorFilter) ([]auth.Operator, int, error) {
	query := `SELECT ` + operatorColumns + ` FROM sys_operators WHERE TRUE`
	countQuery := `SELECT COUNT(*) FROM sys_operators WHERE TRUE`

	var args []any
	argIdx := 1

	if filter.Search != "" {
		cond := fmt.Sprintf(" AND (email ILIKE $%d OR name ILIKE $%d)", argIdx, argIdx)
		query += cond
		countQuery += cond
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}

	if filter.IsActive != nil {
		cond := fmt.Sprintf(" AND is_active = $%d", argIdx)
		query += cond
		countQuery += cond
		args = append(args, *filter.IsActive)
		argIdx++
	}

	if filter.Role != "" {
		cond := fmt.Sprintf(" AND role = $%d", argIdx)
		query += cond
		countQuery += cond
		args = append(args, filter.Role)
		argIdx++
	}

	q := r.querier(ctx)

	var total int
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count operators: %w", err)
	}

	query += " ORDER BY email ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query operators: %w", err)
	}
	defer rows.Close()

	var ops []auth.Operator
	for rows.Next() {
		op, err := r.scanOperator(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan operator: %w", err)
		}
		ops = append(ops, *op)
	}

	return ops, total, rows.Err()
}

// Exists checks if an email is already taken.
func (r *OperatorRepo) Exists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM sys_operators WHERE email = $1)`

	var exists bool
	if err := r.querier(ctx).QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}

	return exists, nil
}

var _ auth.OperatorRepository = (*OperatorRepo)(nil)
