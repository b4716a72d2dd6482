package models

import "github.com/golang-jwt/jwt/v5"

// CallerRole identifies the kind of caller behind a service token.
type CallerRole string

const (
	RoleAdmin   CallerRole = "admin"
	RoleService CallerRole = "service"
)

// ServiceClaims is the JWT payload used for service-to-service calls.
type ServiceClaims struct {
	Role CallerRole `json:"role"`
	jwt.RegisteredClaims
}
