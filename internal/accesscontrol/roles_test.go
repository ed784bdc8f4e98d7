package accesscontrol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/account-service/internal/domain"
)

func TestRoleGuard_CanAssignRole(t *testing.T) {
	guard := NewRoleGuard()

	tests := []struct {
		name      string
		actor     domain.Role
		requested domain.Role
		allowed   bool
	}{
		{"superadmin assigns superadmin", domain.RoleSuperadmin, domain.RoleSuperadmin, true},
		{"superadmin assigns admin", domain.RoleSuperadmin, domain.RoleAdmin, true},
		{"superadmin assigns user", domain.RoleSuperadmin, domain.RoleUser, true},
		{"admin assigns superadmin", domain.RoleAdmin, domain.RoleSuperadmin, false},
		{"admin assigns admin", domain.RoleAdmin, domain.RoleAdmin, false},
		{"admin assigns user", domain.RoleAdmin, domain.RoleUser, true},
		{"user assigns user", domain.RoleUser, domain.RoleUser, true},
		{"user assigns admin", domain.RoleUser, domain.RoleAdmin, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := guard.CanAssignRole(tc.actor, tc.requested)
			assert.Equal(t, tc.allowed, d.Allowed)
			if !tc.allowed {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestRoleGuard_CanManageTarget(t *testing.T) {
	guard := NewRoleGuard()

	tests := []struct {
		name       string
		actor      domain.Role
		actorID    int64
		targetID   int64
		targetRole domain.Role
		allowed    bool
	}{
		{"superadmin manages admin", domain.RoleSuperadmin, 1, 2, domain.RoleAdmin, true},
		{"superadmin manages superadmin", domain.RoleSuperadmin, 1, 2, domain.RoleSuperadmin, true},
		{"admin manages user", domain.RoleAdmin, 1, 2, domain.RoleUser, true},
		{"admin manages other admin", domain.RoleAdmin, 1, 2, domain.RoleAdmin, false},
		{"admin manages self", domain.RoleAdmin, 1, 1, domain.RoleAdmin, true},
		{"admin manages superadmin", domain.RoleAdmin, 1, 2, domain.RoleSuperadmin, false},
		{"user manages self", domain.RoleUser, 5, 5, domain.RoleUser, true},
		{"user manages other", domain.RoleUser, 5, 6, domain.RoleUser, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := guard.CanManageTarget(tc.actor, tc.actorID, tc.targetID, tc.targetRole)
			assert.Equal(t, tc.allowed, d.Allowed)
		})
	}
}

func TestRoleGuard_CanChangeRole(t *testing.T) {
	guard := NewRoleGuard()

	tests := []struct {
		name      string
		actor     domain.Role
		current   domain.Role
		requested domain.Role
		allowed   bool
	}{
		{"superadmin grants superadmin", domain.RoleSuperadmin, domain.RoleUser, domain.RoleSuperadmin, true},
		{"admin grants superadmin", domain.RoleAdmin, domain.RoleUser, domain.RoleSuperadmin, false},
		{"admin promotes user to admin", domain.RoleAdmin, domain.RoleUser, domain.RoleAdmin, false},
		{"admin keeps admin at admin", domain.RoleAdmin, domain.RoleAdmin, domain.RoleAdmin, true},
		{"admin demotes admin to user", domain.RoleAdmin, domain.RoleAdmin, domain.RoleUser, true},
		{"admin keeps user at user", domain.RoleAdmin, domain.RoleUser, domain.RoleUser, true},
		{"user promotes self", domain.RoleUser, domain.RoleUser, domain.RoleAdmin, false},
		{"user keeps own role", domain.RoleUser, domain.RoleUser, domain.RoleUser, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := guard.CanChangeRole(tc.actor, tc.current, tc.requested)
			assert.Equal(t, tc.allowed, d.Allowed)
		})
	}
}

func TestDecision_Err(t *testing.T) {
	guard := NewRoleGuard()

	assert.NoError(t, guard.CanAssignRole(domain.RoleSuperadmin, domain.RoleAdmin).Err())

	err := guard.CanAssignRole(domain.RoleAdmin, domain.RoleSuperadmin).Err()
	assert.ErrorIs(t, err, ErrInsufficientPermissions)

	var permErr *PermissionError
	assert.True(t, errors.As(err, &permErr))
	assert.Equal(t, "assign_role", permErr.Operation)
	assert.NotEmpty(t, permErr.Reason)
}
