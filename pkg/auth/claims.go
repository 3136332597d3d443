package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// StaffClaims are the typed JWT claims carried by staff/admin tokens used on
// the operational API.
type StaffClaims struct {
	UserID  string    `json:"uid"`
	StoreID uuid.UUID `json:"store_id"`
	Role    string    `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token grants platform-admin rights.
func (c *StaffClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
