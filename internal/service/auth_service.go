package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/account-service/internal/accesscontrol"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// AuthService coordinates registration, login and the token lifecycle.
type AuthService struct {
	users      repository.UserRepository
	tokens     *accesscontrol.TokenService
	dispatcher events.Dispatcher
	bcryptCost int
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *accesscontrol.TokenService
	Dispatcher events.Dispatcher
	BcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		bcryptCost: deps.BcryptCost,
	}
}

// Register creates a new account with the base role and issues its first
// token pair. Privileged roles are never self-assigned; promotion goes
// through the guarded role-change flow.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, *accesscontrol.TokenPair, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, apperrors.NewConflict("email already registered", nil)
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.tokens.Issue(ctx, user.ID, user.Role)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.EventUserRegistered, &user.ID, &user.Role, user.Email, nil)
	return user, pair, nil
}

// Login authenticates credentials and issues a fresh token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *accesscontrol.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, err
	}
	if user.Status != domain.UserStatusActive {
		return nil, nil, apperrors.NewForbidden("account suspended", nil)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}

	pair, err := s.tokens.Issue(ctx, user.ID, user.Role)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh token into a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*accesscontrol.TokenPair, error) {
	pair, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		var reuseErr *accesscontrol.RefreshReuseError
		if errors.As(err, &reuseErr) {
			s.publish(ctx, events.EventRefreshReuseDetected, &reuseErr.UserID, nil, "refresh",
				events.RefreshReusePayload{UserID: reuseErr.UserID})
		}
		return nil, err
	}
	return pair, nil
}

// Logout revokes the presented access token and its refresh chain.
func (s *AuthService) Logout(ctx context.Context, secCtx *accesscontrol.SecurityContext, accessToken string) error {
	if err := s.tokens.Revoke(ctx, accessToken); err != nil {
		return err
	}

	userID := secCtx.UserID()
	role := secCtx.Role()
	s.publish(ctx, events.EventTokenRevoked, &userID, &role, secCtx.TokenID(),
		events.TokenRevokedPayload{UserID: userID, Reason: "logout"})
	return nil
}

// LogoutAll revokes every session of the acting user.
func (s *AuthService) LogoutAll(ctx context.Context, secCtx *accesscontrol.SecurityContext) error {
	userID := secCtx.UserID()
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}

	role := secCtx.Role()
	s.publish(ctx, events.EventSessionsRevoked, &userID, &role, secCtx.TokenID(),
		events.TokenRevokedPayload{UserID: userID, Reason: "logout_all"})
	return nil
}

func (s *AuthService) publish(ctx context.Context, t events.EventType, actorID *int64, role *domain.Role, target string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      t,
		Target:    target,
		Actor:     events.Actor{UserID: actorID, Role: role},
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
