package domain

// Role enumerates dashboard operator roles. A user holds exactly one.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager:
		return true
	}
	return false
}

// HasRole reports whether role is a member of allowed.
func HasRole(role Role, allowed []Role) bool {
	for _, candidate := range allowed {
		if candidate == role {
			return true
		}
	}
	return false
}
