// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Role names used across handlers and middleware.
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// UserContext contains authenticated operator information.
type UserContext struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// IsAdmin reports whether the context carries an admin user.
// Admin approval and maintenance endpoints require it.
func IsAdmin(ctx context.Context) bool {
	u := GetUser(ctx)
	return u != nil && u.Role == RoleAdmin
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	return u != nil && u.Role == role
}
