package security

import (
	"strings"
	"time"
)

// Roles carried in the access token.
const (
	RoleUser  = "USER"
	RoleHost  = "HOST"
	RoleAdmin = "ADMIN"
)

type TokenClaims struct {
	UserID  string
	Role    string
	Exp     time.Time
	Issuer  string
	Subject string
}

// NormalizeRole upper-cases the role; tokens from older issuers use lower case.
func NormalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}
