package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bestdeal/internal/domain/alert"
	"github.com/xenking/bestdeal/internal/domain/store"
)

const (
	alertColumns = `id, user_id, product_id, target_price, store, is_active, triggered_at, created_at`

	createAlertSQL = `INSERT INTO price_alerts (id, user_id, product_id, target_price, store)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + alertColumns

	getAlertSQL = `SELECT ` + alertColumns + ` FROM price_alerts WHERE id = $1`

	listActiveAlertsSQL = `SELECT ` + alertColumns + `
		FROM price_alerts WHERE is_active ORDER BY created_at, id`

	listUserAlertsSQL = `SELECT ` + alertColumns + `
		FROM price_alerts WHERE user_id = $1 ORDER BY created_at DESC, id`

	triggerAlertSQL = `UPDATE price_alerts SET is_active = false, triggered_at = $2
		WHERE id = $1 AND is_active`

	setAlertActiveSQL = `UPDATE price_alerts SET is_active = $2 WHERE id = $1`
)

var _ alert.Repository = (*AlertRepository)(nil)

// AlertRepository implements alert.Repository backed by PostgreSQL.
type AlertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository returns an AlertRepository that uses the given pool.
func NewAlertRepository(pool *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{pool: pool}
}

func (r *AlertRepository) Create(ctx context.Context, n alert.NewAlert) (*alert.Alert, error) {
	pid, err := uuid.Parse(n.ProductID)
	if err != nil {
		return nil, errors.Wrapf(err, "product id %q", n.ProductID)
	}
	rows, err := r.pool.Query(ctx, createAlertSQL,
		uuid.New(), n.UserID, pid, n.TargetPrice, storeArg(n.Store),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create alert")
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAlert)
	if err != nil {
		return nil, errors.Wrap(err, "create alert")
	}
	return &a, nil
}

func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	aid, err := uuid.Parse(id)
	if err != nil {
		return nil, alert.ErrNotFound
	}
	rows, err := r.pool.Query(ctx, getAlertSQL, aid)
	if err != nil {
		return nil, errors.Wrapf(err, "get alert %q", id)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAlert)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, alert.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get alert %q", id)
	}
	return &a, nil
}

func (r *AlertRepository) ListActive(ctx context.Context) ([]alert.Alert, error) {
	rows, err := r.pool.Query(ctx, listActiveAlertsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list active alerts")
	}
	out, err := pgx.CollectRows(rows, scanAlert)
	if err != nil {
		return nil, errors.Wrap(err, "list active alerts")
	}
	return out, nil
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID string) ([]alert.Alert, error) {
	rows, err := r.pool.Query(ctx, listUserAlertsSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list user alerts")
	}
	out, err := pgx.CollectRows(rows, scanAlert)
	if err != nil {
		return nil, errors.Wrap(err, "list user alerts")
	}
	return out, nil
}

// Trigger fires the alert only if it is still active when the row is written.
func (r *AlertRepository) Trigger(ctx context.Context, id string, at time.Time) (bool, error) {
	aid, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx, triggerAlertSQL, aid, at)
	if err != nil {
		return false, errors.Wrapf(err, "trigger alert %q", id)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *AlertRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, id, setAlertActiveSQL, active)
}

func (r *AlertRepository) exec(ctx context.Context, id, sql string, args ...any) error {
	aid, err := uuid.Parse(id)
	if err != nil {
		return alert.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, sql, append([]any{aid}, args...)...)
	if err != nil {
		return errors.Wrapf(err, "update alert %q", id)
	}
	if tag.RowsAffected() == 0 {
		return alert.ErrNotFound
	}
	return nil
}

func scanAlert(row pgx.CollectableRow) (alert.Alert, error) {
	var (
		a       alert.Alert
		id, pid uuid.UUID
		st      *string
	)
	err := row.Scan(&id, &a.UserID, &pid, &a.TargetPrice, &st, &a.IsActive, &a.TriggeredAt, &a.CreatedAt)
	a.ID = id.String()
	a.ProductID = pid.String()
	if st != nil {
		a.Store = store.Ptr(store.ID(*st))
	}
	return a, err
}
