package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidEntry = errors.New("invalid usage entry")

// Repository abstracts usage log persistence.
type Repository interface {
	Append(ctx context.Context, e LogEntry) error
	ListByCall(ctx context.Context, callID string) ([]LogEntry, error)
}

// Service validates and appends usage records.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Append stores one usage record, assigning ID and timestamp.
func (s *Service) Append(ctx context.Context, e LogEntry) (LogEntry, error) {
	if e.CallID == "" || e.UserID == "" {
		return LogEntry{}, ErrInvalidEntry
	}
	if err := e.Provider.Validate(); err != nil {
		return LogEntry{}, err
	}
	if err := e.ServiceType.Validate(); err != nil {
		return LogEntry{}, err
	}
	if e.UnitType == "" || e.UnitsConsumed.IsNegative() {
		return LogEntry{}, ErrInvalidEntry
	}

	e.ID = uuid.NewString()
	e.CreatedAt = s.clock().UTC()
	if err := s.repo.Append(ctx, e); err != nil {
		return LogEntry{}, err
	}
	return e, nil
}

// ListByCall returns all usage rows for a call in append order.
func (s *Service) ListByCall(ctx context.Context, callID string) ([]LogEntry, error) {
	if callID == "" {
		return nil, ErrInvalidEntry
	}
	return s.repo.ListByCall(ctx, callID)
}
