package domain

import "time"

// AuditEntry is an append-only record of a security-relevant action.
type AuditEntry struct {
	ID        string
	ActorID   *int64
	ActorRole *Role
	Action    string
	Target    string
	Details   map[string]any
	CreatedAt time.Time
}
