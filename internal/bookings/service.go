package bookings

import (
	"context"
	"fmt"

	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

// Notifier is told about booking lifecycle events. The notify package
// provides the email implementation; a nil Notifier disables notifications.
type Notifier interface {
	BookingCreated(ctx context.Context, b *Booking)
	BookingUpdated(ctx context.Context, b *Booking)
}

// Service wraps the repository with status rules and operator notifications.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *logging.Logger
}

// NewService creates a bookings service.
func NewService(repo Repository, notifier Notifier, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// Create persists a new pending booking and notifies the operator.
func (s *Service) Create(ctx context.Context, b *Booking) error {
	if b.Status == "" {
		b.Status = StatusPending
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.BookingCreated(ctx, b)
	}
	return nil
}

// GetByID loads a booking scoped to the org.
func (s *Service) GetByID(ctx context.Context, orgID, id string) (*Booking, error) {
	return s.repo.GetByID(ctx, orgID, id)
}

// ListForOrg lists recent bookings.
func (s *Service) ListForOrg(ctx context.Context, orgID string, limit int) ([]Booking, error) {
	return s.repo.ListForOrg(ctx, orgID, limit)
}

// AppendEdit applies customer-driven edits. The note is appended on every
// edit, never overwritten, so repeated edits leave a full audit trail.
func (s *Service) AppendEdit(ctx context.Context, b *Booking, note string) error {
	b.Notes += note
	if err := s.repo.Update(ctx, b); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.BookingUpdated(ctx, b)
	}
	return nil
}

// SetStatus applies an operator status change, enforcing the transition
// rules.
func (s *Service) SetStatus(ctx context.Context, orgID, id, status string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, status)
	}
	b.Status = status
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info("booking status changed", "booking_id", id, "org_id", orgID, "status", status)
	return b, nil
}
