package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-console/internal/core/domain"
	"github.com/99minutos/admin-console/internal/core/ports"
	"github.com/99minutos/admin-console/internal/pkg/metrics"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService returns an AuditService. When repo is nil events are only
// written to the log.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Process persists a single authentication event.
func (s *auditService) Process(ctx context.Context, event domain.AuthEvent) error {
	if s.repo != nil {
		if err := s.repo.InsertEvent(ctx, &event); err != nil {
			metrics.AuditErrorsTotal.Inc()
			return fmt.Errorf("process audit event: %w", err)
		}
	}

	metrics.AuditEventsTotal.WithLabelValues(string(event.Kind), event.Outcome).Inc()

	s.log.Info().
		Str("kind", string(event.Kind)).
		Str("sid", event.SessionID).
		Int64("user_id", event.UserID).
		Str("phone", event.Phone).
		Str("outcome", event.Outcome).
		Str("request_id", event.RequestID).
		Msg("auth event")

	return nil
}
