package alert

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bestdeal/internal/domain/product"
)

// Result summarises one evaluation pass.
type Result struct {
	Checked   int
	Triggered int
}

// Evaluator compares active alerts against the latest observed prices.
type Evaluator struct {
	alerts Repository
	obs    product.ObservationRepository
	now    func() time.Time
}

// NewEvaluator creates an alert evaluator.
func NewEvaluator(alerts Repository, obs product.ObservationRepository) *Evaluator {
	return &Evaluator{alerts: alerts, obs: obs, now: time.Now}
}

// Run loads every active alert and evaluates it.
func (e *Evaluator) Run(ctx context.Context) (Result, error) {
	active, err := e.alerts.ListActive(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "list active alerts")
	}
	triggered, err := e.CheckAlerts(ctx, active)
	return Result{Checked: len(active), Triggered: triggered}, err
}

// CheckAlerts evaluates alerts in order and returns how many fired. An alert
// fires when the latest price for its product (and store, if set) is at or
// below the target. Alerts without any observation, and alerts no longer
// active by the time they would fire, are skipped. The first
// repository error stops the pass and is returned with the count so far.
func (e *Evaluator) CheckAlerts(ctx context.Context, alerts []Alert) (int, error) {
	lg := zctx.From(ctx)
	triggered := 0
	for _, a := range alerts {
		if !a.IsActive {
			continue
		}
		latest, err := e.obs.Latest(ctx, a.ProductID, a.Store)
		if errors.Is(err, product.ErrNoObservations) {
			continue
		}
		if err != nil {
			return triggered, errors.Wrapf(err, "latest price for alert %s", a.ID)
		}
		if latest.Price.GreaterThan(a.TargetPrice) {
			continue
		}

		fired, err := e.alerts.Trigger(ctx, a.ID, e.now())
		if err != nil {
			return triggered, errors.Wrapf(err, "trigger alert %s", a.ID)
		}
		if !fired {
			// Paused or fired elsewhere since it was loaded.
			continue
		}
		triggered++
		lg.Info("Alert triggered",
			zap.String("alert_id", a.ID),
			zap.String("product_id", a.ProductID),
			zap.String("store", string(latest.Store)),
			zap.Stringer("price", latest.Price),
			zap.Stringer("target", a.TargetPrice),
		)
	}
	return triggered, nil
}

// RunLoop runs an evaluation pass every interval until ctx is done. Failed
// passes are logged and retried on the next tick.
func (e *Evaluator) RunLoop(ctx context.Context, interval time.Duration) error {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			res, err := e.Run(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				lg.Error("Alert check failed", zap.Error(err))
				continue
			}
			lg.Debug("Alert check done",
				zap.Int("checked", res.Checked),
				zap.Int("triggered", res.Triggered),
			)
		}
	}
}
