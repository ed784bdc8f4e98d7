package accesscontrol

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// RefreshStatus is the lifecycle state of a refresh record. Transitions are
// active→rotated (successful refresh) and active→revoked (logout, explicit
// revoke, reuse detection); rotated and revoked are terminal.
type RefreshStatus string

const (
	RefreshActive  RefreshStatus = "ACTIVE"
	RefreshRotated RefreshStatus = "ROTATED"
	RefreshRevoked RefreshStatus = "REVOKED"
)

// RefreshRecord is a persisted refresh token. The identifier itself is the
// opaque credential handed to the client; it is never decoded, only looked up.
type RefreshRecord struct {
	ID            string
	UserID        int64
	Role          domain.Role
	AccessTokenID string
	Status        RefreshStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the record is past its natural expiry.
func (r *RefreshRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// ErrRefreshNotFound is returned by FindRefresh when no record exists.
var ErrRefreshNotFound = errors.New("refresh record not found")

// RevocationStore persists the revoked-token denylist and refresh records.
// Implementations must be safe for concurrent use; RotateRefresh must be a
// compare-and-swap so exactly one of two racing refreshes wins.
type RevocationStore interface {
	// IsRevoked reports denylist membership for an access-token identifier.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// Revoke adds a token identifier to the denylist. Idempotent: revoking
	// an already revoked identifier is a no-op. expiresAt records the
	// token's natural expiry so the entry can be garbage collected later.
	Revoke(ctx context.Context, tokenID string, reason string, expiresAt time.Time) error

	// RevokeAllForUser revokes every active access-token identifier and
	// refresh record belonging to the user, effective immediately for
	// subsequent validations.
	RevokeAllForUser(ctx context.Context, userID int64) error

	// SaveRefreshRecord persists a new active refresh record.
	SaveRefreshRecord(ctx context.Context, rec *RefreshRecord) error

	// FindRefresh looks up a refresh record by identifier, any status.
	FindRefresh(ctx context.Context, id string) (*RefreshRecord, error)

	// RotateRefresh atomically marks the old record rotated and inserts the
	// new active one. If the old record is not currently active the rotation
	// fails with ErrRefreshReuse and no new record is written.
	RotateRefresh(ctx context.Context, oldID string, newRec *RefreshRecord) error

	// RevokeRefreshByAccessID revokes the refresh record chained to the
	// given access-token identifier, if one is still active. Idempotent.
	RevokeRefreshByAccessID(ctx context.Context, accessTokenID string) error

	// PruneExpired deletes denylist entries and refresh records whose
	// natural expiry has passed; expired tokens fail validation on their
	// own, so the entries carry no information anymore. Returns the number
	// of rows removed.
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}
