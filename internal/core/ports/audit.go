package ports

import (
	"context"

	"github.com/99minutos/admin-console/internal/core/domain"
)

// AuditRepository persists authentication events.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AuthEvent) error
}

// AuditService processes a single authentication event.
type AuditService interface {
	Process(ctx context.Context, event domain.AuthEvent) error
}
