package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-service/internal/accesscontrol"
)

// revocationRepository is the Postgres implementation of the core
// RevocationStore: an append-only denylist plus the refresh chains.
type revocationRepository struct {
	pool *pgxpool.Pool
}

// NewRevocationRepository returns a Postgres-backed RevocationStore.
func NewRevocationRepository(pool *pgxpool.Pool) accesscontrol.RevocationStore {
	return &revocationRepository{pool: pool}
}

func (r *revocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id=$1)`

	var revoked bool
	if err := r.pool.QueryRow(ctx, query, tokenID).Scan(&revoked); err != nil {
		return false, err
	}
	return revoked, nil
}

func (r *revocationRepository) Revoke(ctx context.Context, tokenID, reason string, expiresAt time.Time) error {
	const query = `
        INSERT INTO revoked_tokens (token_id, reason, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (token_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query, tokenID, reason, expiresAt)
	return err
}

func (r *revocationRepository) RevokeAllForUser(ctx context.Context, userID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Denylist the access token of every chain record that could still back
	// a live access token, rotated ones included: an access token issued
	// before a rotation stays valid until natural expiry unless denylisted
	// here. Then close the active chains.
	const denylist = `
        INSERT INTO revoked_tokens (token_id, reason, expires_at)
        SELECT access_token_id, 'revoke_all', expires_at
        FROM refresh_tokens
        WHERE user_id=$1 AND expires_at > NOW()
        ON CONFLICT (token_id) DO NOTHING`
	if _, err := tx.Exec(ctx, denylist, userID); err != nil {
		return err
	}

	const closeChains = `
        UPDATE refresh_tokens SET status='REVOKED'
        WHERE user_id=$1 AND status='ACTIVE'`
	if _, err := tx.Exec(ctx, closeChains, userID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *revocationRepository) SaveRefreshRecord(ctx context.Context, rec *accesscontrol.RefreshRecord) error {
	const query = `
        INSERT INTO refresh_tokens (id, user_id, role, access_token_id, status, created_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Role,
		rec.AccessTokenID,
		rec.Status,
		rec.CreatedAt,
		rec.ExpiresAt,
	)
	return err
}

func (r *revocationRepository) FindRefresh(ctx context.Context, id string) (*accesscontrol.RefreshRecord, error) {
	const query = `
        SELECT id, user_id, role, access_token_id, status, created_at, expires_at
        FROM refresh_tokens WHERE id=$1`

	var rec accesscontrol.RefreshRecord
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Role,
		&rec.AccessTokenID,
		&rec.Status,
		&rec.CreatedAt,
		&rec.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, accesscontrol.ErrRefreshNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *revocationRepository) RotateRefresh(ctx context.Context, oldID string, newRec *accesscontrol.RefreshRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The conditional UPDATE is the compare-and-swap: of two concurrent
	// rotations exactly one flips ACTIVE to ROTATED, the other affects zero
	// rows and fails.
	const rotate = `
        UPDATE refresh_tokens SET status='ROTATED'
        WHERE id=$1 AND status='ACTIVE'`
	cmd, err := tx.Exec(ctx, rotate, oldID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE id=$1)`, oldID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return accesscontrol.ErrRefreshNotFound
		}
		return accesscontrol.ErrRefreshReuse
	}

	const insert = `
        INSERT INTO refresh_tokens (id, user_id, role, access_token_id, status, created_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insert,
		newRec.ID,
		newRec.UserID,
		newRec.Role,
		newRec.AccessTokenID,
		newRec.Status,
		newRec.CreatedAt,
		newRec.ExpiresAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *revocationRepository) RevokeRefreshByAccessID(ctx context.Context, accessTokenID string) error {
	const query = `
        UPDATE refresh_tokens SET status='REVOKED'
        WHERE access_token_id=$1 AND status='ACTIVE'`

	_, err := r.pool.Exec(ctx, query, accessTokenID)
	return err
}

func (r *revocationRepository) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	const pruneDenylist = `DELETE FROM revoked_tokens WHERE expires_at < $1`
	cmd, err := r.pool.Exec(ctx, pruneDenylist, now)
	if err != nil {
		return 0, err
	}
	pruned := cmd.RowsAffected()

	const pruneRefresh = `DELETE FROM refresh_tokens WHERE expires_at < $1`
	cmd, err = r.pool.Exec(ctx, pruneRefresh, now)
	if err != nil {
		return pruned, err
	}
	return pruned + cmd.RowsAffected(), nil
}
