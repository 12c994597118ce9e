package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Role is the coarse access level embedded in staff tokens.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleOperator:
		return true
	}
	return false
}

// CanManageOrders reports whether the role may invoke the order
// management endpoints (capture, cancel, refund, status changes).
func (r Role) CanManageOrders() bool {
	return r == RoleAdmin || r == RoleOperator
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Subject string
	Role    Role
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to staff clients.
type AccessTokenClaims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}
