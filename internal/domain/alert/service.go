package alert

import (
	"context"

	"github.com/go-faster/errors"
)

// Service handles user-initiated alert changes.
type Service struct {
	repo Repository
}

// NewService creates an alert service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new active alert.
func (s *Service) Create(ctx context.Context, n NewAlert) (*Alert, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	a, err := s.repo.Create(ctx, n)
	if err != nil {
		return nil, errors.Wrap(err, "create alert")
	}
	return a, nil
}

// List returns a user's alerts.
func (s *Service) List(ctx context.Context, userID string) ([]Alert, error) {
	alerts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list alerts")
	}
	return alerts, nil
}

// Pause stops evaluating an active alert.
func (s *Service) Pause(ctx context.Context, id string) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.State() != Active {
		return nil, errors.Wrapf(ErrInvalidState, "pause %s alert", a.State())
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return nil, errors.Wrap(err, "pause alert")
	}
	a.IsActive = false
	return a, nil
}

// Resume re-activates a paused alert. Triggered alerts stay triggered; the
// user creates a new alert for a new target.
func (s *Service) Resume(ctx context.Context, id string) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch a.State() {
	case Active:
		return a, nil
	case Triggered:
		return nil, errors.Wrapf(ErrInvalidState, "resume %s alert", a.State())
	}
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return nil, errors.Wrap(err, "resume alert")
	}
	a.IsActive = true
	return a, nil
}
