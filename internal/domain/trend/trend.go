// Package trend summarises a product's price history over a time window.
package trend

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
)

const (
	DefaultWindowDays = 30
	MaxWindowDays     = 365
)

var (
	half    = decimal.NewFromFloat(0.5)
	hundred = decimal.NewFromInt(100)
)

// Point is one entry of a price history.
type Point struct {
	Store      store.ID
	Price      decimal.Decimal
	ObservedAt time.Time
}

// Trend is the summary of a product's observations inside a window.
type Trend struct {
	ProductID string
	Lowest    decimal.Decimal
	Highest   decimal.Decimal
	// Average is rounded to a whole currency unit.
	Average decimal.Decimal
	Current decimal.Decimal
	// ChangePercent is (Current-Average)/Average*100 rounded; zero when the
	// average is zero.
	ChangePercent int
	ChangeAmount  decimal.Decimal
	History       []Point
}

// WindowDays clamps a requested window to [1, MaxWindowDays], using the
// default for non-positive values.
func WindowDays(days int) int {
	switch {
	case days <= 0:
		return DefaultWindowDays
	case days > MaxWindowDays:
		return MaxWindowDays
	}
	return days
}

// Since returns the start of a window of days ending at now.
func Since(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -WindowDays(days))
}

// History returns the observations inside the window as points in
// ascending time order. Input order does not matter.
func History(obs []product.Observation, windowDays int, now time.Time) []Point {
	since := Since(now, windowDays)
	points := make([]Point, 0, len(obs))
	for _, o := range obs {
		if o.ObservedAt.Before(since) || o.ObservedAt.After(now) {
			continue
		}
		points = append(points, Point{Store: o.Store, Price: o.Price, ObservedAt: o.ObservedAt})
	}
	slices.SortStableFunc(points, func(a, b Point) int {
		return a.ObservedAt.Compare(b.ObservedAt)
	})
	return points
}

// Compute summarises the observations inside the window ending at now. It
// reports false when the window holds no observations.
func Compute(obs []product.Observation, windowDays int, now time.Time) (*Trend, bool) {
	points := History(obs, windowDays, now)
	if len(points) == 0 {
		return nil, false
	}

	t := &Trend{
		ProductID: obs[0].ProductID,
		Lowest:    points[0].Price,
		Highest:   points[0].Price,
		Current:   points[len(points)-1].Price,
		History:   points,
	}
	sum := decimal.Zero
	for _, p := range points {
		sum = sum.Add(p.Price)
		if p.Price.LessThan(t.Lowest) {
			t.Lowest = p.Price
		}
		if p.Price.GreaterThan(t.Highest) {
			t.Highest = p.Price
		}
	}
	t.Average = roundHalfUp(sum.Div(decimal.NewFromInt(int64(len(points)))))
	t.ChangeAmount = t.Current.Sub(t.Average)
	if !t.Average.IsZero() {
		t.ChangePercent = int(roundHalfUp(t.ChangeAmount.Div(t.Average).Mul(hundred)).IntPart())
	}
	return t, true
}

// roundHalfUp rounds to an integer with halves going toward +Inf.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}
