package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bestdeal/internal/domain/store"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrNoObservations is returned when no price has been recorded for the
	// requested product (and store, if one was given).
	ErrNoObservations = errors.New("no price observations")
)

// Product is the canonical record that unifies listings of the same item
// across storefronts. The ID is assigned by the Repository on first sight and
// never changes afterwards.
type Product struct {
	ID        string
	Name      string
	Brand     string
	Category  string
	ImageURL  string
	CreatedAt time.Time
}

// NewProduct holds the fields used to find or create a canonical product.
type NewProduct struct {
	Name     string
	Brand    string
	Category string
	ImageURL string
}

// Observation is one immutable, timestamped price record for a
// (product, store) pair.
type Observation struct {
	ID              string
	ProductID       string
	Store           store.ID
	Price           decimal.Decimal
	OriginalPrice   *decimal.Decimal
	DiscountPercent *int
	Currency        string
	InStock         bool
	SourceURL       string
	ObservedAt      time.Time
}

// NewObservation builds an observation for an offer, deriving the discount
// from the original price when one was advertised.
func NewObservation(productID string, o Offer, observedAt time.Time) Observation {
	obs := Observation{
		ProductID:     productID,
		Store:         o.Store,
		Price:         o.Price,
		OriginalPrice: o.OriginalPrice,
		Currency:      store.CurrencyOf(o.Store),
		InStock:       o.InStock,
		SourceURL:     o.SourceURL,
		ObservedAt:    observedAt,
	}
	if o.OriginalPrice != nil {
		if d, ok := DiscountPercent(o.Price, *o.OriginalPrice); ok {
			obs.DiscountPercent = &d
		}
	}
	return obs
}

// Repository finds and creates canonical products.
//
// FindOrCreate must be idempotent under concurrent callers: two runs that
// create the same name at the same time receive the same ID.
type Repository interface {
	FindOrCreate(ctx context.Context, p NewProduct) (string, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Search(ctx context.Context, query string, limit int) ([]Product, error)
}

// ObservationRepository appends and queries the append-only price history.
// A nil store means "any store".
type ObservationRepository interface {
	Append(ctx context.Context, o Observation) error
	List(ctx context.Context, productID string, st *store.ID, since time.Time) ([]Observation, error)
	Latest(ctx context.Context, productID string, st *store.ID) (*Observation, error)
	LatestPerStore(ctx context.Context, productID string) ([]Observation, error)
}
