package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID       uuid.UUID
	Role         enums.UserRole
	BypassLimits bool
	JTI          string
}

// AccessTokenClaims represents the typed JWT issued to clients.
// BypassLimits marks test and operator accounts that skip usage gating.
type AccessTokenClaims struct {
	UserID       uuid.UUID      `json:"user_id"`
	Role         enums.UserRole `json:"role"`
	BypassLimits bool           `json:"bypass_limits,omitempty"`
	jwt.RegisteredClaims
}
