package service

import (
	"context"

	"github.com/spec-kit/account-service/internal/accesscontrol"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
)

// AuditService records security-relevant events and exposes the log to
// administrators.
type AuditService struct {
	entries repository.AuditRepository
	guard   accesscontrol.RoleGuard
}

// NewAuditService builds the service.
func NewAuditService(entries repository.AuditRepository) *AuditService {
	return &AuditService{entries: entries, guard: accesscontrol.NewRoleGuard()}
}

// RecordEvent persists a domain event as an audit entry. Used as an event
// handler by the audit worker.
func (s *AuditService) RecordEvent(ctx context.Context, event events.Event) error {
	details := map[string]any{}
	if event.Payload != nil {
		details["payload"] = event.Payload
	}

	entry := &domain.AuditEntry{
		ID:        event.ID,
		ActorID:   event.Actor.UserID,
		ActorRole: event.Actor.Role,
		Action:    string(event.Type),
		Target:    event.Target,
		Details:   details,
	}
	return s.entries.Create(ctx, entry)
}

// List returns audit entries; admin and above only.
func (s *AuditService) List(ctx context.Context, secCtx *accesscontrol.SecurityContext, limit, offset int) ([]*domain.AuditEntry, error) {
	if err := s.guard.RequireAtLeast(secCtx.Role(), domain.RoleAdmin).Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.entries.List(ctx, limit, offset)
}
