package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/service"
)

// auditedEvents lists the event types the audit trail records.
var auditedEvents = []events.EventType{
	events.EventUserRegistered,
	events.EventUserDeleted,
	events.EventRoleChanged,
	events.EventTokenRevoked,
	events.EventSessionsRevoked,
	events.EventRefreshReuseDetected,
	events.EventFileCreated,
	events.EventFileDeleted,
}

// StartAuditWorker subscribes the audit service to security-relevant events.
func StartAuditWorker(dispatcher events.Dispatcher, auditService *service.AuditService, logger *zap.Logger) {
	if dispatcher == nil || auditService == nil {
		return
	}

	handler := func(ctx context.Context, event events.Event) error {
		if err := auditService.RecordEvent(ctx, event); err != nil {
			logger.Error("failed to record audit entry",
				zap.String("event_type", string(event.Type)), zap.Error(err))
			return err
		}
		return nil
	}

	for _, eventType := range auditedEvents {
		dispatcher.Subscribe(eventType, handler)
	}
}
