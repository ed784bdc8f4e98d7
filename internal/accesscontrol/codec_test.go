package accesscontrol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/account-service/internal/domain"
)

func TestTokenCodec_EncodeDecodeRoundtrip(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	token, issued, err := codec.Encode(42, domain.RoleAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotEmpty(t, issued.TokenID)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, issued.TokenID, claims.TokenID)
	assert.WithinDuration(t, issued.ExpiresAt, claims.ExpiresAt, time.Second)
}

func TestTokenCodec_TokenIDsAreUnique(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		_, claims, err := codec.Encode(1, domain.RoleUser)
		require.NoError(t, err)
		_, dup := seen[claims.TokenID]
		require.False(t, dup, "token identifier reused: %s", claims.TokenID)
		seen[claims.TokenID] = struct{}{}
	}
}

func TestTokenCodec_DecodeRejectsTamperedToken(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	token, _, err := codec.Encode(7, domain.RoleUser)
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = codec.Decode(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenCodec_DecodeRejectsWrongSecret(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)
	other := NewTokenCodec("other-secret", time.Hour)

	token, _, err := other.Encode(7, domain.RoleUser)
	require.NoError(t, err)

	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenCodec_DecodeRejectsGarbage(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	for _, input := range []string{"", "not-a-token", "a.b.c"} {
		_, err := codec.Decode(input)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", input)
	}
}

func TestTokenCodec_DecodeIgnoresExpiry(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Millisecond)

	token, _, err := codec.Encode(7, domain.RoleUser)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	// Decode must still succeed on an expired token; expiry is policy,
	// checked separately.
	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.True(t, codec.IsExpired(claims))
}

func TestTokenCodec_IsExpired(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	fresh := &AccessClaims{ExpiresAt: time.Now().Add(time.Minute)}
	stale := &AccessClaims{ExpiresAt: time.Now().Add(-time.Minute)}

	assert.False(t, codec.IsExpired(fresh))
	assert.True(t, codec.IsExpired(stale))
}
