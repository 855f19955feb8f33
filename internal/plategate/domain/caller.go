package domain

import "strings"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSecurity Role = "security"
	RoleStandard Role = "standard"
)

// ParseRole maps a stored or user-supplied role string to a Role.
// Unknown or empty values fall back to RoleStandard.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleSecurity:
		return RoleSecurity
	default:
		return RoleStandard
	}
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSecurity || r == RoleStandard
}

// Caller is the already-authenticated principal on whose behalf a core
// operation runs. Role checks happen before a Caller reaches the core;
// the core only uses it for attribution.
type Caller struct {
	IdentityID string
	Role       Role
}

// System is the caller used by background jobs and seeding.
var System = Caller{IdentityID: "", Role: RoleAdmin}

// Source identifies how a candidate plate entered the pipeline.
type Source string

const (
	SourceManual  Source = "manual"
	SourceCapture Source = "capture"
)

func (s Source) Valid() bool {
	return s == SourceManual || s == SourceCapture
}
