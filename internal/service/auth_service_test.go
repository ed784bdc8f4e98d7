package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/accesscontrol"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

type memoryUserRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{nextID: 1, byID: map[int64]*domain.User{}}
}

func (r *memoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.byID[user.ID] = &clone
	return nil
}

func (r *memoryUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now()
	clone := *user
	r.byID[user.ID] = &clone
	return nil
}

func (r *memoryUserRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *memoryUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.byID {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryUserRepo) List(_ context.Context, limit, offset int) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]*domain.User, 0, len(r.byID))
	for _, user := range r.byID {
		clone := *user
		users = append(users, &clone)
	}
	return users, nil
}

type authFixture struct {
	service *AuthService
	repo    *memoryUserRepo
	tokens  *accesscontrol.TokenService
	store   *accesscontrol.MemoryRevocationStore
	events  *recordingDispatcher
}

type recordingDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) all() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event{}, d.published...)
}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	types := make([]events.EventType, 0, len(d.published))
	for _, e := range d.published {
		types = append(types, e.Type)
	}
	return types
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	store := accesscontrol.NewMemoryRevocationStore()
	codec := accesscontrol.NewTokenCodec("test-secret", time.Minute)
	tokens := accesscontrol.NewTokenService(codec, store, time.Hour, zap.NewNop())
	repo := newMemoryUserRepo()
	dispatcher := &recordingDispatcher{}

	svc := NewAuthService(AuthDependencies{
		UserRepo:   repo,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		BcryptCost: 4,
	})

	return &authFixture{service: svc, repo: repo, tokens: tokens, store: store, events: dispatcher}
}

func TestAuthServiceRegisterIssuesBaseRole(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	user, pair, err := fx.service.Register(ctx, "Ada", "ada@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.NotNil(t, pair)

	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, domain.UserStatusActive, user.Status)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	claims, err := fx.tokens.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, domain.RoleUser, claims.Role)

	assert.Contains(t, fx.events.types(), events.EventUserRegistered)
}

func TestAuthServiceRegisterRejectsDuplicateEmail(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	_, _, err := fx.service.Register(ctx, "Ada", "ada@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, _, err = fx.service.Register(ctx, "Ada Again", "ada@example.com", "other-pass")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)
	assert.Equal(t, http.StatusConflict, domainErr.HTTPStatus)
}

func TestAuthServiceLogin(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	registered, _, err := fx.service.Register(ctx, "Ada", "ada@example.com", "s3cret-pass")
	require.NoError(t, err)

	user, pair, err := fx.service.Login(ctx, "ada@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = fx.tokens.ValidateAccess(ctx, pair.AccessToken)
	assert.NoError(t, err)

	// Wrong password and unknown email are indistinguishable 401s.
	var domainErr *apperrors.DomainError
	_, _, err = fx.service.Login(ctx, "ada@example.com", "wrong-pass")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)

	_, _, err = fx.service.Login(ctx, "nobody@example.com", "s3cret-pass")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)
}

func TestAuthServiceLoginRejectsSuspended(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	user, _, err := fx.service.Register(ctx, "Ada", "ada@example.com", "s3cret-pass")
	require.NoError(t, err)

	user.Status = domain.UserStatusSuspended
	require.NoError(t, fx.repo.Update(ctx, user))

	_, _, err = fx.service.Login(ctx, "ada@example.com", "s3cret-pass")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "FORBIDDEN", domainErr.Code)
	assert.Equal(t, http.StatusForbidden, domainErr.HTTPStatus)
}

func TestAuthServiceRefreshRotates(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	_, pair, err := fx.service.Register(ctx, "Ada", "ada@example.com", "s3cret-pass")
	require.NoError(t, err)

	next, err := fx.service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = fx.tokens.ValidateAccess(ctx, next.AccessToken)
	assert.NoError(t, err)
}

func TestAuthServiceRefreshReusePublishesEvent(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	user, pair, err := fx.service.Register(ctx, "Ada", "ada@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, err = fx.service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = fx.service.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, accesscontrol.ErrRefreshReuse)

	// The audit trail records which user's session family was revoked.
	var reuseEvent events.Event
	var found bool
	for _, e := range fx.events.all() {
		if e.Type == events.EventRefreshReuseDetected {
			reuseEvent = e
			found = true
		}
	}
	require.True(t, found)
	require.NotNil(t, reuseEvent.Actor.UserID)
	assert.Equal(t, user.ID, *reuseEvent.Actor.UserID)
	payload, ok := reuseEvent.Payload.(events.RefreshReusePayload)
	require.True(t, ok)
	assert.Equal(t, user.ID, payload.UserID)
}

func TestAuthServiceLogoutRevokesAccessToken(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	user, pair, err := fx.service.Register(ctx, "Ada", "ada@example.com", "s3cret-pass")
	require.NoError(t, err)

	claims, err := fx.tokens.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)

	secCtx := accesscontrol.NewSecurityContext(user.ID, user.Role, claims.TokenID, nil)
	require.NoError(t, fx.service.Logout(ctx, secCtx, pair.AccessToken))

	_, err = fx.tokens.ValidateAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, accesscontrol.ErrUnauthenticated)

	_, err = fx.service.Refresh(ctx, pair.RefreshToken)
	assert.Error(t, err)

	assert.Contains(t, fx.events.types(), events.EventTokenRevoked)
}

func TestAuthServiceLogoutAllRevokesEverySession(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	user, first, err := fx.service.Register(ctx, "Ada", "ada@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, second, err := fx.service.Login(ctx, "ada@example.com", "s3cret-pass")
	require.NoError(t, err)

	claims, err := fx.tokens.ValidateAccess(ctx, first.AccessToken)
	require.NoError(t, err)

	secCtx := accesscontrol.NewSecurityContext(user.ID, user.Role, claims.TokenID, nil)
	require.NoError(t, fx.service.LogoutAll(ctx, secCtx))

	_, err = fx.tokens.ValidateAccess(ctx, first.AccessToken)
	assert.ErrorIs(t, err, accesscontrol.ErrUnauthenticated)
	_, err = fx.tokens.ValidateAccess(ctx, second.AccessToken)
	assert.ErrorIs(t, err, accesscontrol.ErrUnauthenticated)

	assert.Contains(t, fx.events.types(), events.EventSessionsRevoked)
}
