package models

import "fmt"

// Role is the closed set of caller roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole accepts only the known roles.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleUser:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Caller is the resolved identity attached to every request.
type Caller struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}
