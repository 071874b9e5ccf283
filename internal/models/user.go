package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles carried by session tokens.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleStudent    UserRole = "STUDENT"
)

// Elevated reports whether the role may administer any file.
func (r UserRole) Elevated() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// JWTClaims represents the JWT payload of access tokens issued by the
// platform's auth service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
