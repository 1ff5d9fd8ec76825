// Package alert evaluates user price targets against observed prices.
package alert

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bestdeal/internal/domain/store"
)

var (
	ErrNotFound      = errors.New("alert not found")
	ErrInvalidTarget = errors.New("target price must be positive")
	ErrInvalidState  = errors.New("alert state does not allow this transition")
	ErrInvalidAlert  = errors.New("invalid alert")
)

// State is the lifecycle position of an alert.
type State string

const (
	// Active alerts are evaluated on every check.
	Active State = "active"
	// Triggered alerts fired once and are no longer evaluated.
	Triggered State = "triggered"
	// Paused alerts were switched off by the user before firing.
	Paused State = "paused"
)

// Alert is a user's request to be told when a product's price drops to or
// below a target. A nil Store means any store.
type Alert struct {
	ID          string
	UserID      string
	ProductID   string
	TargetPrice decimal.Decimal
	Store       *store.ID
	IsActive    bool
	TriggeredAt *time.Time
	CreatedAt   time.Time
}

// State derives the lifecycle state from the stored flags.
func (a Alert) State() State {
	switch {
	case a.IsActive:
		return Active
	case a.TriggeredAt != nil:
		return Triggered
	default:
		return Paused
	}
}

// NewAlert holds the fields needed to register an alert.
type NewAlert struct {
	UserID      string
	ProductID   string
	TargetPrice decimal.Decimal
	Store       *store.ID
}

// Validate checks the user-supplied fields.
func (n NewAlert) Validate() error {
	switch {
	case n.UserID == "":
		return errors.Wrap(ErrInvalidAlert, "user id is required")
	case n.ProductID == "":
		return errors.Wrap(ErrInvalidAlert, "product id is required")
	case !n.TargetPrice.IsPositive():
		return ErrInvalidTarget
	}
	return nil
}

// Repository persists alerts. Trigger marks an alert fired only while it is
// still active and reports whether it did; a paused, triggered or deleted
// alert is left untouched.
type Repository interface {
	Create(ctx context.Context, n NewAlert) (*Alert, error)
	GetByID(ctx context.Context, id string) (*Alert, error)
	ListActive(ctx context.Context) ([]Alert, error)
	ListByUser(ctx context.Context, userID string) ([]Alert, error)
	Trigger(ctx context.Context, id string, at time.Time) (bool, error)
	SetActive(ctx context.Context, id string, active bool) error
}
