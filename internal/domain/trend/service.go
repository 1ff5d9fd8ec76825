package trend

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
)

// Service reads price history from the observation repository and
// summarises it.
type Service struct {
	obs product.ObservationRepository
	now func() time.Time
}

// NewService creates a trend service.
func NewService(obs product.ObservationRepository) *Service {
	return &Service{obs: obs, now: time.Now}
}

// Get returns the trend of a product, optionally restricted to one store.
// It returns product.ErrNoObservations when the window is empty.
func (s *Service) Get(ctx context.Context, productID string, st *store.ID, windowDays int) (*Trend, error) {
	now := s.now()
	obs, err := s.obs.List(ctx, productID, st, Since(now, windowDays))
	if err != nil {
		return nil, errors.Wrap(err, "list observations")
	}
	t, ok := Compute(obs, windowDays, now)
	if !ok {
		return nil, product.ErrNoObservations
	}
	t.ProductID = productID
	return t, nil
}

// History returns the ascending price history of a product inside the
// window. An empty history is not an error.
func (s *Service) History(ctx context.Context, productID string, st *store.ID, windowDays int) ([]Point, error) {
	now := s.now()
	obs, err := s.obs.List(ctx, productID, st, Since(now, windowDays))
	if err != nil {
		return nil, errors.Wrap(err, "list observations")
	}
	return History(obs, windowDays, now), nil
}
