package membership

import (
	"context"
	"fmt"

	"github.com/go-classroom-api/internal/domain"
)

// Action is a group operation subject to authorization.
type Action string

const (
	ActionPostMessage  Action = "postMessage"
	ActionReadMessages Action = "readMessages"
)

// GroupReader is the minimal group lookup the resolver needs.
type GroupReader interface {
	Get(ctx context.Context, groupID string) (*domain.Group, error)
}

// Service answers membership questions for a group. It has no side effects
// and fails closed: a group that cannot be loaded authorizes nobody.
type Service interface {
	// LoadGroup fetches the group, wrapping missing groups in domain.ErrNotFound
	// so callers can distinguish 404 from 403.
	LoadGroup(ctx context.Context, groupID string) (*domain.Group, error)
	// Authorize reports whether the caller may perform the action on the group.
	// Returns nil or an error wrapping domain.ErrForbidden.
	Authorize(group *domain.Group, caller domain.Identity, action Action) error
}

type resolver struct {
	groups GroupReader
}

// NewResolver binds the stateless authorization rules to a group store.
func NewResolver(groups GroupReader) Service {
	return &resolver{groups: groups}
}

func (r *resolver) LoadGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	return r.groups.Get(ctx, groupID)
}

func (r *resolver) Authorize(group *domain.Group, caller domain.Identity, action Action) error {
	switch action {
	case ActionPostMessage, ActionReadMessages:
		return authorizeMember(group, caller)
	default:
		return fmt.Errorf("unknown action %q: %w", action, domain.ErrForbidden)
	}
}

// authorizeMember grants access to admins, the group's instructor and its
// students. Membership is checked by id regardless of role; a caller matching
// either the instructor slot or the student set is in.
func authorizeMember(group *domain.Group, caller domain.Identity) error {
	switch caller.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleInstructor, domain.RoleStudent:
		if group.InstructorID != "" && group.InstructorID == caller.UserID {
			return nil
		}
		if group.HasStudent(caller.UserID) {
			return nil
		}
		return fmt.Errorf("user %s is not a member of group %s: %w", caller.UserID, group.GroupID, domain.ErrForbidden)
	default:
		// Unknown role: fail closed.
		return fmt.Errorf("unrecognized role %q: %w", caller.Role, domain.ErrForbidden)
	}
}
