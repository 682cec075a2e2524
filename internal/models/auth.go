package models

import "github.com/golang-jwt/jwt/v5"

// UserRole identifies the caller's role carried in access tokens. The
// engine itself is role-agnostic; roles only gate HTTP routes.
type UserRole string

// Known roles.
const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// JWTClaims represents the JWT payload for access tokens issued by the
// upstream identity service.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
