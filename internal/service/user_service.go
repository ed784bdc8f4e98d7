package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/account-service/internal/accesscontrol"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
)

// UserService implements account management. Every operation takes the
// caller's SecurityContext and consults the role guard before touching
// anything; no role comparison happens outside the guard.
type UserService struct {
	users      repository.UserRepository
	guard      accesscontrol.RoleGuard
	tokens     *accesscontrol.TokenService
	dispatcher events.Dispatcher
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, tokens *accesscontrol.TokenService, dispatcher events.Dispatcher) *UserService {
	return &UserService{
		users:      users,
		guard:      accesscontrol.NewRoleGuard(),
		tokens:     tokens,
		dispatcher: dispatcher,
	}
}

// Get returns a user the caller is allowed to see.
func (s *UserService) Get(ctx context.Context, secCtx *accesscontrol.SecurityContext, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageTarget(secCtx.Role(), secCtx.UserID(), user.ID, user.Role).Err(); err != nil {
		return nil, err
	}
	return user, nil
}

// List returns accounts; admin and above only.
func (s *UserService) List(ctx context.Context, secCtx *accesscontrol.SecurityContext, limit, offset int) ([]*domain.User, error) {
	if err := s.guard.RequireAtLeast(secCtx.Role(), domain.RoleAdmin).Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.users.List(ctx, limit, offset)
}

// Update modifies name/status of a target account, guarded by the
// manage-target rule.
func (s *UserService) Update(ctx context.Context, secCtx *accesscontrol.SecurityContext, id int64, name *string, status *domain.UserStatus) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageTarget(secCtx.Role(), secCtx.UserID(), user.ID, user.Role).Err(); err != nil {
		return nil, err
	}

	if name != nil {
		user.Name = *name
	}
	if status != nil {
		user.Status = *status
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	// Suspending an account terminates its sessions immediately.
	if status != nil && *status == domain.UserStatusSuspended {
		if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// Delete removes a target account and revokes all of its tokens.
func (s *UserService) Delete(ctx context.Context, secCtx *accesscontrol.SecurityContext, id int64) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard.CanManageTarget(secCtx.Role(), secCtx.UserID(), user.ID, user.Role).Err(); err != nil {
		return err
	}

	if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, events.EventUserDeleted, secCtx, user.Email, nil)
	return nil
}

// ChangeRole moves a target account to a new role. Both the manage-target
// and change-role rules must allow it. All existing tokens of the target are
// revoked so no token keeps claiming the old role.
func (s *UserService) ChangeRole(ctx context.Context, secCtx *accesscontrol.SecurityContext, id int64, requested domain.Role) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageTarget(secCtx.Role(), secCtx.UserID(), user.ID, user.Role).Err(); err != nil {
		return nil, err
	}
	if err := s.guard.CanChangeRole(secCtx.Role(), user.Role, requested).Err(); err != nil {
		return nil, err
	}

	oldRole := user.Role
	user.Role = requested
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventRoleChanged, secCtx, user.Email, events.RoleChangedPayload{
		TargetUserID: user.ID,
		OldRole:      oldRole,
		NewRole:      requested,
	})
	return user, nil
}

func (s *UserService) publish(ctx context.Context, t events.EventType, secCtx *accesscontrol.SecurityContext, target string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	actorID := secCtx.UserID()
	role := secCtx.Role()
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      t,
		Target:    target,
		Actor:     events.Actor{UserID: &actorID, Role: &role},
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
