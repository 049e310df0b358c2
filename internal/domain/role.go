package domain

import "fmt"

// Role is the closed set of user roles. Authorization decisions switch
// exhaustively over this type; raw strings never cross package boundaries.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// ParseRole converts an external role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q: %w", s, ErrValidation)
	}
}

func (r Role) String() string { return string(r) }

// Roles lists every assignable role, in privilege order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleInstructor, RoleStudent}
}
