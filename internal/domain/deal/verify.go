// Package deal checks advertised discounts against observed price history.
package deal

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
	"github.com/xenking/bestdeal/internal/domain/trend"
)

// ErrInvalidClaim is returned for claims that cannot describe a discount.
var ErrInvalidClaim = errors.New("invalid deal claim")

// Tolerance is how far above the observed price a claimed original price
// may be while the deal still counts as genuine.
var Tolerance = decimal.RequireFromString("1.02")

// Claim is a deal as advertised by a store.
type Claim struct {
	ProductID            string
	Store                store.ID
	DealPrice            decimal.Decimal
	ClaimedOriginalPrice decimal.Decimal
}

func (c Claim) validate() error {
	switch {
	case c.ProductID == "":
		return errors.Wrap(ErrInvalidClaim, "product id is required")
	case c.Store == "":
		return errors.Wrap(ErrInvalidClaim, "store is required")
	case !c.DealPrice.IsPositive():
		return errors.Wrap(ErrInvalidClaim, "deal price must be positive")
	case c.ClaimedOriginalPrice.LessThan(c.DealPrice):
		return errors.Wrap(ErrInvalidClaim, "claimed original price is below deal price")
	}
	return nil
}

// Verdict is the outcome of checking a claim.
type Verdict struct {
	Claim
	ClaimedDiscount int
	// ActualDiscount is measured against PriceBeforeDeal and may be negative
	// when the deal price is above anything observed.
	ActualDiscount  int
	PriceBeforeDeal decimal.Decimal
	Genuine         bool
	Analysis        string
	WindowDays      int
	Observations    int
}

// Verifier checks claims against the store's price history.
type Verifier struct {
	obs product.ObservationRepository
	now func() time.Time
}

// NewVerifier creates a deal verifier.
func NewVerifier(obs product.ObservationRepository) *Verifier {
	return &Verifier{obs: obs, now: time.Now}
}

// Verify compares the claim with the highest price observed at the same
// store inside the window. It returns product.ErrNoObservations when there
// is no history to compare against.
func (v *Verifier) Verify(ctx context.Context, c Claim, windowDays int) (*Verdict, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	days := trend.WindowDays(windowDays)
	now := v.now()

	history, err := v.obs.List(ctx, c.ProductID, &c.Store, trend.Since(now, days))
	if err != nil {
		return nil, errors.Wrap(err, "list observations")
	}
	points := trend.History(history, days, now)
	if len(points) == 0 {
		return nil, product.ErrNoObservations
	}

	before := points[0].Price
	for _, p := range points[1:] {
		if p.Price.GreaterThan(before) {
			before = p.Price
		}
	}

	out := &Verdict{
		Claim:           c,
		PriceBeforeDeal: before,
		Genuine:         c.ClaimedOriginalPrice.LessThanOrEqual(before.Mul(Tolerance)),
		WindowDays:      days,
		Observations:    len(points),
	}
	out.ClaimedDiscount, _ = product.DiscountPercent(c.DealPrice, c.ClaimedOriginalPrice)
	out.ActualDiscount, _ = product.DiscountPercent(c.DealPrice, before)
	out.Analysis = analysis(out)
	return out, nil
}

func analysis(v *Verdict) string {
	if v.Genuine {
		return fmt.Sprintf("Genuine deal. The highest price in the last %d days was %s; "+
			"the %d%% discount is real.", v.WindowDays, v.PriceBeforeDeal, v.ActualDiscount)
	}
	return fmt.Sprintf("Inflated original price. The product never sold above %s in the last %d days, "+
		"so the real discount is %d%%, not %d%%.",
		v.PriceBeforeDeal, v.WindowDays, v.ActualDiscount, v.ClaimedDiscount)
}
