package accesscontrol

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
)

func newTestTokenService(t *testing.T) (*TokenService, *MemoryRevocationStore) {
	t.Helper()
	store := NewMemoryRevocationStore()
	codec := NewTokenCodec("test-secret", time.Hour)
	return NewTokenService(codec, store, 24*time.Hour, zap.NewNop()), store
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, 42, domain.RoleUser)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.AccessExpiresAt.After(time.Now()))
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	claims, err := svc.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, domain.RoleUser, claims.Role)
}

func TestTokenService_ValidateRejectsGarbage(t *testing.T) {
	svc, _ := newTestTokenService(t)

	_, err := svc.ValidateAccess(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenService_ValidateRejectsExpired(t *testing.T) {
	store := NewMemoryRevocationStore()
	codec := NewTokenCodec("test-secret", time.Millisecond)
	svc := NewTokenService(codec, store, 24*time.Hour, zap.NewNop())
	ctx := context.Background()

	pair, err := svc.Issue(ctx, 42, domain.RoleUser)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = svc.ValidateAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenService_RevokeInvalidatesToken(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, 42, domain.RoleUser)
	require.NoError(t, err)

	_, err = svc.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.AccessToken))

	_, err = svc.ValidateAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// The chained refresh token dies with the access token.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.Error(t, err)
}

func TestTokenService_RevokeIsIdempotent(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, 42, domain.RoleUser)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.AccessToken))
	require.NoError(t, svc.Revoke(ctx, pair.AccessToken))
}

func TestTokenService_RevokeAllIsolatesUsers(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	alice1, err := svc.Issue(ctx, 1, domain.RoleUser)
	require.NoError(t, err)
	alice2, err := svc.Issue(ctx, 1, domain.RoleUser)
	require.NoError(t, err)
	bob, err := svc.Issue(ctx, 2, domain.RoleUser)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, 1))

	_, err = svc.ValidateAccess(ctx, alice1.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.ValidateAccess(ctx, alice2.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Refresh(ctx, alice1.RefreshToken)
	assert.Error(t, err)

	// Bob's session is untouched.
	_, err = svc.ValidateAccess(ctx, bob.AccessToken)
	assert.NoError(t, err)
	_, err = svc.Refresh(ctx, bob.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenService_RevokeAllKillsPreRotationAccessToken(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, 7, domain.RoleUser)
	require.NoError(t, err)

	// Rotation leaves the original chain record terminal, but the access
	// token it issued stays valid until natural expiry.
	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, err = svc.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, 7))

	// Every previously issued access token fails, rotated chains included.
	_, err = svc.ValidateAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.ValidateAccess(ctx, next.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenService_RefreshRotates(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, 42, domain.RoleAdmin)
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)

	// Role survives rotation.
	claims, err := svc.ValidateAccess(ctx, next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestTokenService_RefreshReuseRevokesFamily(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, 42, domain.RoleUser)
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	// Replaying the rotated token is treated as theft: the whole family,
	// including the legitimate successor, is revoked.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshReuse)

	_, err = svc.ValidateAccess(ctx, next.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Refresh(ctx, next.RefreshToken)
	assert.Error(t, err)
}

func TestTokenService_RefreshUnknownToken(t *testing.T) {
	svc, _ := newTestTokenService(t)

	_, err := svc.Refresh(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenService_RefreshExpiredRecord(t *testing.T) {
	store := NewMemoryRevocationStore()
	codec := NewTokenCodec("test-secret", time.Hour)
	svc := NewTokenService(codec, store, time.Millisecond, zap.NewNop())
	ctx := context.Background()

	pair, err := svc.Issue(ctx, 42, domain.RoleUser)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenService_ConcurrentRefreshExactlyOnce(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		pair, err := svc.Issue(ctx, int64(round), domain.RoleUser)
		require.NoError(t, err)

		const racers = 8
		errs := make([]error, racers)
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.Refresh(ctx, pair.RefreshToken)
			}(i)
		}
		wg.Wait()

		var wins, reuses int
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, ErrRefreshReuse):
				reuses++
			}
		}
		assert.Equal(t, 1, wins, "exactly one concurrent refresh must win")
		assert.Equal(t, racers-1, reuses)

		// Regardless of outcome the original token is spent forever.
		_, err = svc.Refresh(ctx, pair.RefreshToken)
		assert.Error(t, err)
	}
}

func TestMemoryRevocationStore_PruneExpired(t *testing.T) {
	store := NewMemoryRevocationStore()
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "stale", "logout", time.Now().Add(-time.Hour)))
	require.NoError(t, store.Revoke(ctx, "live", "logout", time.Now().Add(time.Hour)))
	require.NoError(t, store.SaveRefreshRecord(ctx, &RefreshRecord{
		ID: "old-refresh", UserID: 1, Role: domain.RoleUser,
		AccessTokenID: "stale", Status: RefreshActive,
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	pruned, err := store.PruneExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	revoked, err := store.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.IsRevoked(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = store.FindRefresh(ctx, "old-refresh")
	assert.ErrorIs(t, err, ErrRefreshNotFound)
}
