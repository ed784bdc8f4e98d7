package accesscontrol

import (
	"context"
	"sync"
	"time"
)

type revokedEntry struct {
	reason    string
	revokedAt time.Time
	expiresAt time.Time
}

// MemoryRevocationStore is a process-local RevocationStore. It backs tests
// and single-instance deployments; multi-instance deployments need a shared
// store so revocations are visible everywhere.
type MemoryRevocationStore struct {
	mu       sync.Mutex
	revoked  map[string]revokedEntry
	refresh  map[string]*RefreshRecord
	byUser   map[int64][]string
	byAccess map[string]string
}

// NewMemoryRevocationStore builds an empty store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		revoked:  make(map[string]revokedEntry),
		refresh:  make(map[string]*RefreshRecord),
		byUser:   make(map[int64][]string),
		byAccess: make(map[string]string),
	}
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[tokenID]
	return ok, nil
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenID, reason string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeLocked(tokenID, reason, expiresAt)
	return nil
}

func (s *MemoryRevocationStore) revokeLocked(tokenID, reason string, expiresAt time.Time) {
	if _, exists := s.revoked[tokenID]; exists {
		return
	}
	s.revoked[tokenID] = revokedEntry{reason: reason, revokedAt: time.Now(), expiresAt: expiresAt}
}

func (s *MemoryRevocationStore) RevokeAllForUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byUser[userID] {
		rec := s.refresh[id]
		if rec == nil {
			continue
		}
		if rec.Status == RefreshActive {
			rec.Status = RefreshRevoked
		}
		s.revokeLocked(rec.AccessTokenID, "revoke_all", rec.ExpiresAt)
	}
	return nil
}

func (s *MemoryRevocationStore) SaveRefreshRecord(_ context.Context, rec *RefreshRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(rec)
	return nil
}

func (s *MemoryRevocationStore) saveLocked(rec *RefreshRecord) {
	cp := *rec
	s.refresh[cp.ID] = &cp
	s.byUser[cp.UserID] = append(s.byUser[cp.UserID], cp.ID)
	s.byAccess[cp.AccessTokenID] = cp.ID
}

func (s *MemoryRevocationStore) FindRefresh(_ context.Context, id string) (*RefreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.refresh[id]
	if !ok {
		return nil, ErrRefreshNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryRevocationStore) RotateRefresh(_ context.Context, oldID string, newRec *RefreshRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.refresh[oldID]
	if !ok {
		return ErrRefreshNotFound
	}
	// Compare-and-swap under the lock: only an active record may rotate.
	if old.Status != RefreshActive {
		return ErrRefreshReuse
	}
	old.Status = RefreshRotated
	s.saveLocked(newRec)
	return nil
}

func (s *MemoryRevocationStore) RevokeRefreshByAccessID(_ context.Context, accessTokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byAccess[accessTokenID]
	if !ok {
		return nil
	}
	if rec := s.refresh[id]; rec != nil && rec.Status == RefreshActive {
		rec.Status = RefreshRevoked
	}
	return nil
}

func (s *MemoryRevocationStore) PruneExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	for id, entry := range s.revoked {
		if now.After(entry.expiresAt) {
			delete(s.revoked, id)
			pruned++
		}
	}
	for id, rec := range s.refresh {
		if now.After(rec.ExpiresAt) {
			delete(s.refresh, id)
			delete(s.byAccess, rec.AccessTokenID)
			pruned++
		}
	}
	return pruned, nil
}
