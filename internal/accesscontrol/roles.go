package accesscontrol

import (
	"fmt"

	"github.com/spec-kit/account-service/internal/domain"
)

// Decision is the outcome of a role-hierarchy check. It is a value, not an
// error: callers convert a denial with Err when they need to abort.
type Decision struct {
	Allowed   bool
	Operation string
	Reason    string
}

func allow(op string) Decision {
	return Decision{Allowed: true, Operation: op}
}

func deny(op, reason string) Decision {
	return Decision{Allowed: false, Operation: op, Reason: reason}
}

// Err returns nil for an allowed decision and a PermissionError carrying
// the attempted operation otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &PermissionError{Operation: d.Operation, Reason: d.Reason}
}

// RoleGuard centralizes every role-hierarchy rule. It is pure and stateless;
// no other package may compare roles ad hoc.
type RoleGuard struct{}

// NewRoleGuard returns the guard.
func NewRoleGuard() RoleGuard { return RoleGuard{} }

// CanAssignRole decides whether an actor may create an account carrying the
// requested role. Admins cannot mint admins or superadmins; users can only
// produce plain users.
func (RoleGuard) CanAssignRole(actor, requested domain.Role) Decision {
	const op = "assign_role"

	switch actor {
	case domain.RoleSuperadmin:
		return allow(op)
	case domain.RoleAdmin:
		if requested == domain.RoleAdmin || requested == domain.RoleSuperadmin {
			return deny(op, fmt.Sprintf("admin cannot assign role %s", requested))
		}
		return allow(op)
	default:
		if requested != domain.RoleUser {
			return deny(op, fmt.Sprintf("role %s cannot assign role %s", actor, requested))
		}
		return allow(op)
	}
}

// RequireAtLeast decides whether the actor sits at or above the minimum
// role. Used for coarse endpoint gating (listings, audit log access).
func (RoleGuard) RequireAtLeast(actor, min domain.Role) Decision {
	const op = "require_role"

	if !actor.AtLeast(min) {
		return deny(op, fmt.Sprintf("%s role required", min))
	}
	return allow(op)
}

// CanManageTarget decides whether an actor may act on a target account.
// Admins manage anyone except other admins and superadmins; everyone may act
// on themselves.
func (RoleGuard) CanManageTarget(actor domain.Role, actorID, targetID int64, target domain.Role) Decision {
	const op = "manage_target"

	switch actor {
	case domain.RoleSuperadmin:
		return allow(op)
	case domain.RoleAdmin:
		if (target == domain.RoleAdmin || target == domain.RoleSuperadmin) && targetID != actorID {
			return deny(op, fmt.Sprintf("admin cannot manage %s accounts", target))
		}
		return allow(op)
	default:
		if targetID != actorID {
			return deny(op, "users may only manage their own account")
		}
		return allow(op)
	}
}

// CanChangeRole decides whether an actor may move an account from its
// current role to the requested one. Admins may neither promote to
// superadmin nor promote anyone into the admin tier; non-admins cannot
// change roles at all.
func (RoleGuard) CanChangeRole(actor, current, requested domain.Role) Decision {
	const op = "change_role"

	switch actor {
	case domain.RoleSuperadmin:
		return allow(op)
	case domain.RoleAdmin:
		if requested == domain.RoleSuperadmin {
			return deny(op, "admin cannot grant superadmin")
		}
		if requested == domain.RoleAdmin && current != domain.RoleAdmin {
			return deny(op, "admin cannot promote to admin")
		}
		return allow(op)
	default:
		if current != requested {
			return deny(op, "role changes require admin privileges")
		}
		return allow(op)
	}
}
