// Package audit records who changed what: sign-ins, book writes and profile
// edits. Events are written in the background so request latency does not
// depend on the audit table.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/library/internal/database/audit"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/logger"
)

// Actor identifies the caller behind an event.
type Actor struct {
	UserID    uint
	RequestID string
	IPAddress string
	UserAgent string
}

// Service provides high-level audit logging functionality.
type Service struct {
	repo    *audit.Repository
	log     *slog.Logger
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: logger.OrDiscard(log).With("component", "audit")}
}

// Log records an audit event synchronously.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	if event.RequestID == "" {
		event.RequestID = uuid.NewString()
	}
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.Log(context.Background(), event); err != nil {
			s.log.Error("failed to log audit event", "action", event.Action, "error", err)
		}
	}()
}

// Wait blocks until every background write has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(actor Actor, action string, success bool) {
	event := s.event(actor, entities.AuditEventAuth, action)
	if !success {
		event.Status = entities.AuditStatusFailed
	}
	s.LogAsync(event)
}

// LogBook records a book create or update.
func (s *Service) LogBook(actor Actor, action, bookID, title string, err error) {
	event := s.event(actor, entities.AuditEventBook, action)
	event.Description = truncate(title, 500)
	event.EntityType = "book"
	event.EntityID = bookID
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	s.LogAsync(event)
}

// LogDelete records a deletion event.
func (s *Service) LogDelete(actor Actor, entityType, entityID, entityName string) {
	event := s.event(actor, entities.AuditEventDelete, entityType+"_delete")
	event.Description = truncate("Deleted "+entityType+": "+entityName, 500)
	event.EntityType = entityType
	event.EntityID = entityID
	s.LogAsync(event)
}

// LogProfile records a profile change.
func (s *Service) LogProfile(actor Actor, action, description string) {
	event := s.event(actor, entities.AuditEventProfile, action)
	event.Description = truncate(description, 500)
	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events for one user.
func (s *Service) GetEvents(ctx context.Context, userID uint, eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, userID, eventType, limit, offset)
}

// DeleteOldEvents removes events older than the retention period.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func (s *Service) event(actor Actor, eventType entities.AuditEventType, action string) *entities.AuditEvent {
	return &entities.AuditEvent{
		RequestID: actor.RequestID,
		UserID:    actor.UserID,
		EventType: eventType,
		Action:    action,
		IPAddress: actor.IPAddress,
		UserAgent: truncate(actor.UserAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
