package dto

import (
	"millstock/internal/domain/auth"
)

// LoginRequest for operator login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ToCredentials converts to domain credentials.
func (r *LoginRequest) ToCredentials() auth.Credentials {
	return auth.Credentials{
		Email:    r.Email,
		Password: r.Password,
	}
}

// RefreshTokenRequest for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// CreateOperatorRequest for admin-side operator creation.
type CreateOperatorRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// ToInput converts to the domain input.
func (r *CreateOperatorRequest) ToInput() auth.CreateOperatorInput {
	return auth.CreateOperatorInput{
		Email:    r.Email,
		Password: r.Password,
		Name:     r.Name,
		Role:     r.Role,
	}
}

// SetRoleRequest changes an operator's role.
type SetRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// LoginResponse carries the token pair and the logged-in operator.
type LoginResponse struct {
	Tokens   *auth.TokenPair `json:"tokens"`
	Operator *auth.Operator  `json:"operator"`
}
