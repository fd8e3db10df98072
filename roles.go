package session

// UserRole is the role the auth server assigns to a principal.
type UserRole string

const (
	// RoleAuthenticated is the standard signed-in role.
	RoleAuthenticated UserRole = "authenticated"
	// RoleAdmin is the service administrator role that gates admin views.
	RoleAdmin UserRole = "supabase_admin"
)

// IsValid checks if the role is one of the predefined valid roles.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAuthenticated, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level.
func (r UserRole) IsAtLeast(min UserRole) bool {
	hierarchy := map[UserRole]int{
		RoleAuthenticated: 0,
		RoleAdmin:         1,
	}

	level, ok := hierarchy[r]
	if !ok {
		return false
	}
	required, ok := hierarchy[min]
	if !ok {
		return false
	}
	return level >= required
}

// GetAllRoles returns all predefined roles in hierarchical order.
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleAuthenticated,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type.
func ParseRole(raw string) (UserRole, bool) {
	role := UserRole(raw)
	return role, role.IsValid()
}
