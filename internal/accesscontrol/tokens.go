package accesscontrol

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
)

// TokenPair bundles the credentials returned on issue and refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenService orchestrates issuance, validation, refresh rotation and
// revocation over the stateless codec and the stateful revocation store.
type TokenService struct {
	codec      *TokenCodec
	store      RevocationStore
	refreshTTL time.Duration
	logger     *zap.Logger
}

// NewTokenService builds the service.
func NewTokenService(codec *TokenCodec, store RevocationStore, refreshTTL time.Duration, logger *zap.Logger) *TokenService {
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &TokenService{codec: codec, store: store, refreshTTL: refreshTTL, logger: logger}
}

// Issue mints an access token and starts a new refresh chain for it.
func (s *TokenService) Issue(ctx context.Context, userID int64, role domain.Role) (*TokenPair, error) {
	accessToken, claims, err := s.codec.Encode(userID, role)
	if err != nil {
		return nil, err
	}

	refreshID, err := newRefreshID()
	if err != nil {
		return nil, err
	}

	rec := &RefreshRecord{
		ID:            refreshID,
		UserID:        userID,
		Role:          role,
		AccessTokenID: claims.TokenID,
		Status:        RefreshActive,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(s.refreshTTL),
	}
	if err := s.store.SaveRefreshRecord(ctx, rec); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  claims.ExpiresAt,
		RefreshToken:     refreshID,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// ValidateAccess verifies a raw access token end to end: signature, expiry,
// then revocation. Every failure is reported as ErrUnauthenticated so the
// response cannot be used as an oracle. Store outages fail closed.
func (s *TokenService) ValidateAccess(ctx context.Context, token string) (*AccessClaims, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if s.codec.IsExpired(claims) {
		return nil, ErrUnauthenticated
	}

	revoked, err := s.store.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		s.logger.Warn("revocation check failed, failing closed", zap.Error(err))
		return nil, ErrUnauthenticated
	}
	if revoked {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// Refresh rotates a refresh chain: the presented token becomes terminal and
// a fresh pair is issued for the same user and role. Presenting a rotated or
// revoked token is treated as replay; the whole session family for the user
// is revoked before the error is returned.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	rec, err := s.store.FindRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, ErrUnauthenticated
	}
	if rec.Expired(time.Now()) {
		return nil, ErrUnauthenticated
	}
	if rec.Status != RefreshActive {
		return nil, s.handleReuse(ctx, rec)
	}

	accessToken, claims, err := s.codec.Encode(rec.UserID, rec.Role)
	if err != nil {
		return nil, err
	}
	refreshID, err := newRefreshID()
	if err != nil {
		return nil, err
	}
	newRec := &RefreshRecord{
		ID:            refreshID,
		UserID:        rec.UserID,
		Role:          rec.Role,
		AccessTokenID: claims.TokenID,
		Status:        RefreshActive,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(s.refreshTTL),
	}

	if err := s.store.RotateRefresh(ctx, rec.ID, newRec); err != nil {
		if errors.Is(err, ErrRefreshReuse) {
			// Lost the race against a concurrent refresh of the same token.
			return nil, s.handleReuse(ctx, rec)
		}
		return nil, ErrUnauthenticated
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  claims.ExpiresAt,
		RefreshToken:     refreshID,
		RefreshExpiresAt: newRec.ExpiresAt,
	}, nil
}

// handleReuse applies the replay response: a stale refresh token invalidates
// the legitimate session too, fail-safe over fail-open.
func (s *TokenService) handleReuse(ctx context.Context, rec *RefreshRecord) error {
	s.logger.Warn("refresh token reuse detected, revoking session family",
		zap.Int64("user_id", rec.UserID))
	if err := s.store.RevokeAllForUser(ctx, rec.UserID); err != nil {
		s.logger.Error("failed to revoke session family", zap.Error(err), zap.Int64("user_id", rec.UserID))
	}
	return &RefreshReuseError{UserID: rec.UserID}
}

// Revoke invalidates a single access token and its refresh chain. The token
// is decoded without an expiry check so a logout with a stale token still
// lands on the denylist.
func (s *TokenService) Revoke(ctx context.Context, accessToken string) error {
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return ErrUnauthenticated
	}
	if err := s.store.Revoke(ctx, claims.TokenID, "logout", claims.ExpiresAt); err != nil {
		return err
	}
	return s.store.RevokeRefreshByAccessID(ctx, claims.TokenID)
}

// RevokeAll invalidates every outstanding access and refresh token for a user.
func (s *TokenService) RevokeAll(ctx context.Context, userID int64) error {
	return s.store.RevokeAllForUser(ctx, userID)
}

// newRefreshID returns an opaque 256-bit random identifier.
func newRefreshID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
