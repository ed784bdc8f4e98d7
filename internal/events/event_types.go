package events

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered       EventType = "user_registered"
	EventUserDeleted          EventType = "user_deleted"
	EventRoleChanged          EventType = "role_changed"
	EventTokenRevoked         EventType = "token_revoked"
	EventSessionsRevoked      EventType = "sessions_revoked"
	EventRefreshReuseDetected EventType = "refresh_reuse_detected"
	EventFileCreated          EventType = "file_created"
	EventFileDeleted          EventType = "file_deleted"
)

// Actor encapsulates actor metadata for an event. A nil UserID marks a
// system-originated event (e.g. the revocation sweeper).
type Actor struct {
	UserID *int64       `json:"user_id,omitempty"`
	Role   *domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Target    string      `json:"target"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RoleChangedPayload payload.
type RoleChangedPayload struct {
	TargetUserID int64       `json:"target_user_id"`
	OldRole      domain.Role `json:"old_role"`
	NewRole      domain.Role `json:"new_role"`
}

// TokenRevokedPayload payload.
type TokenRevokedPayload struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

// RefreshReusePayload payload.
type RefreshReusePayload struct {
	UserID int64 `json:"user_id"`
}

// FilePayload payload.
type FilePayload struct {
	FileID  int64  `json:"file_id"`
	OwnerID int64  `json:"owner_id"`
	Name    string `json:"name"`
}
