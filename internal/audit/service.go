package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal operational events.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogProviderFailure records one failed provider attempt during fallback.
func (s *Service) LogProviderFailure(ctx context.Context, callID, serviceType, providerID, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeProviderFailure,
		Severity:    SeverityWarning,
		CallID:      callID,
		ServiceType: serviceType,
		Provider:    providerID,
		Message:     message,
	})
}

// LogFallbackUsed records a substitution away from the configured primary.
func (s *Service) LogFallbackUsed(ctx context.Context, callID, serviceType, primary, used string, position int, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeFallbackUsed,
		Severity:    SeverityInfo,
		CallID:      callID,
		ServiceType: serviceType,
		Provider:    used,
		Message:     "fallback from " + primary,
		Metadata:    metadata,
	})
}

// LogChainExhausted records a complete provider outage for a service type.
func (s *Service) LogChainExhausted(ctx context.Context, callID, serviceType, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeChainExhausted,
		Severity:    SeverityCritical,
		CallID:      callID,
		ServiceType: serviceType,
		Message:     message,
	})
}

// LogUnpaidCall flags a billed call whose debit was refused.
func (s *Service) LogUnpaidCall(ctx context.Context, callID, userID, amount string) error {
	return s.Append(ctx, Event{
		Type:     EventTypeUnpaidCall,
		Severity: SeverityWarning,
		CallID:   callID,
		UserID:   userID,
		Message:  "debit refused, amount " + amount,
	})
}

// LogAdminAction records a privileged wallet operation.
func (s *Service) LogAdminAction(ctx context.Context, actorUserID, actorRole, userID, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAdminAction,
		Severity:    SeverityInfo,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		UserID:      userID,
		Message:     message,
		Metadata:    metadata,
	})
}
