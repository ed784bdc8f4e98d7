package dto

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// AuditEntryResponse is the external view of an audit record.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	ActorID   *int64         `json:"actor_id,omitempty"`
	ActorRole *string        `json:"actor_role,omitempty"`
	Action    string         `json:"action"`
	Target    string         `json:"target"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewAuditEntryResponse maps a domain audit entry.
func NewAuditEntryResponse(entry *domain.AuditEntry) AuditEntryResponse {
	resp := AuditEntryResponse{
		ID:        entry.ID,
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		Target:    entry.Target,
		Details:   entry.Details,
		CreatedAt: entry.CreatedAt,
	}
	if entry.ActorRole != nil {
		role := string(*entry.ActorRole)
		resp.ActorRole = &role
	}
	return resp
}
