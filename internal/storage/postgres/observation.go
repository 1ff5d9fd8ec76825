package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
)

const (
	observationColumns = `id, product_id, store, price, original_price, discount_percent,
		currency, in_stock, source_url, observed_at`

	appendObservationSQL = `INSERT INTO price_observations (` + observationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	// $2 NULL matches every store.
	listObservationsSQL = `SELECT ` + observationColumns + `
		FROM price_observations
		WHERE product_id = $1 AND ($2::text IS NULL OR store = $2) AND observed_at >= $3
		ORDER BY observed_at, id`

	latestObservationSQL = `SELECT ` + observationColumns + `
		FROM price_observations
		WHERE product_id = $1 AND ($2::text IS NULL OR store = $2)
		ORDER BY observed_at DESC, id DESC
		LIMIT 1`

	latestPerStoreSQL = `SELECT DISTINCT ON (store) ` + observationColumns + `
		FROM price_observations
		WHERE product_id = $1
		ORDER BY store, observed_at DESC, id DESC`
)

var _ product.ObservationRepository = (*ObservationRepository)(nil)

// ObservationRepository implements product.ObservationRepository backed by
// PostgreSQL. Rows are never updated.
type ObservationRepository struct {
	pool *pgxpool.Pool
}

// NewObservationRepository returns an ObservationRepository that uses the
// given pool.
func NewObservationRepository(pool *pgxpool.Pool) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

// Append stores one observation. A missing ID or timestamp is filled in.
func (r *ObservationRepository) Append(ctx context.Context, o product.Observation) error {
	id, err := observationID(o.ID)
	if err != nil {
		return err
	}
	pid, err := uuid.Parse(o.ProductID)
	if err != nil {
		return errors.Wrapf(err, "product id %q", o.ProductID)
	}
	at := o.ObservedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err = r.pool.Exec(ctx, appendObservationSQL,
		id, pid, string(o.Store), o.Price, o.OriginalPrice, o.DiscountPercent,
		o.Currency, o.InStock, o.SourceURL, at,
	)
	if err != nil {
		return errors.Wrapf(err, "append observation for product %q", o.ProductID)
	}
	return nil
}

// List returns observations since the given time, ascending.
func (r *ObservationRepository) List(ctx context.Context, productID string, st *store.ID, since time.Time) ([]product.Observation, error) {
	pid, err := uuid.Parse(productID)
	if err != nil {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, listObservationsSQL, pid, storeArg(st), since)
	if err != nil {
		return nil, errors.Wrap(err, "list observations")
	}
	out, err := pgx.CollectRows(rows, scanObservation)
	if err != nil {
		return nil, errors.Wrap(err, "list observations")
	}
	return out, nil
}

// Latest returns the most recent observation for the product (and store).
func (r *ObservationRepository) Latest(ctx context.Context, productID string, st *store.ID) (*product.Observation, error) {
	pid, err := uuid.Parse(productID)
	if err != nil {
		return nil, product.ErrNoObservations
	}
	rows, err := r.pool.Query(ctx, latestObservationSQL, pid, storeArg(st))
	if err != nil {
		return nil, errors.Wrap(err, "latest observation")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanObservation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNoObservations
		}
		return nil, errors.Wrap(err, "latest observation")
	}
	return &o, nil
}

// LatestPerStore returns the most recent observation of each store, ordered
// by store.
func (r *ObservationRepository) LatestPerStore(ctx context.Context, productID string) ([]product.Observation, error) {
	pid, err := uuid.Parse(productID)
	if err != nil {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, latestPerStoreSQL, pid)
	if err != nil {
		return nil, errors.Wrap(err, "latest per store")
	}
	out, err := pgx.CollectRows(rows, scanObservation)
	if err != nil {
		return nil, errors.Wrap(err, "latest per store")
	}
	return out, nil
}

func scanObservation(row pgx.CollectableRow) (product.Observation, error) {
	var (
		o        product.Observation
		id, pid  uuid.UUID
		st       string
		original *decimal.Decimal
	)
	err := row.Scan(&id, &pid, &st, &o.Price, &original, &o.DiscountPercent,
		&o.Currency, &o.InStock, &o.SourceURL, &o.ObservedAt)
	o.ID = id.String()
	o.ProductID = pid.String()
	o.Store = store.ID(st)
	o.OriginalPrice = original
	return o, err
}

func storeArg(st *store.ID) *string {
	if st == nil {
		return nil
	}
	s := string(*st)
	return &s
}

func observationID(id string) (uuid.UUID, error) {
	if id == "" {
		return uuid.New(), nil
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "observation id %q", id)
	}
	return u, nil
}
