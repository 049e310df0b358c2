package domain

// Identity is the caller descriptor produced by the auth middleware.
// The dispatch engine consumes it as-is and never constructs one.
type Identity struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
