package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
)

const instrumentationName = "github.com/xenking/bestdeal/internal/scraper"

// ErrNoAdapters is returned when a dispatcher is built without adapters.
var ErrNoAdapters = errors.New("no store adapters registered")

// Adapter searches a single storefront. Implementations return an empty
// result for recoverable conditions and an error only when misconfigured.
type Adapter interface {
	Store() store.ID
	Search(ctx context.Context, query string) ([]product.Listing, error)
}

// Dispatcher fans a query out to every adapter and collects whatever each
// one returns. A failing adapter never affects the others.
type Dispatcher struct {
	adapters []Adapter
	timeout  time.Duration
	tracer   trace.Tracer

	listings metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// Option configures a Dispatcher.
type Option func(*dispatcherOptions)

type dispatcherOptions struct {
	timeout time.Duration
	tp      trace.TracerProvider
	mp      metric.MeterProvider
}

// WithTimeout bounds each adapter call.
func WithTimeout(d time.Duration) Option {
	return func(o *dispatcherOptions) { o.timeout = d }
}

// WithTracerProvider sets the tracer provider used for per-adapter spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *dispatcherOptions) { o.tp = tp }
}

// WithMeterProvider sets the meter provider for scraper metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *dispatcherOptions) { o.mp = mp }
}

// NewDispatcher returns a dispatcher over adapters in registration order.
func NewDispatcher(adapters []Adapter, opts ...Option) (*Dispatcher, error) {
	if len(adapters) == 0 {
		return nil, ErrNoAdapters
	}
	o := dispatcherOptions{
		timeout: DefaultTimeout,
		tp:      tracenoop.NewTracerProvider(),
		mp:      metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.mp.Meter(instrumentationName)
	d := &Dispatcher{
		adapters: append([]Adapter(nil), adapters...),
		timeout:  o.timeout,
		tracer:   o.tp.Tracer(instrumentationName),
	}
	var err error
	if d.listings, err = meter.Int64Counter("scraper.listings",
		metric.WithDescription("Listings returned by store adapters")); err != nil {
		return nil, errors.Wrap(err, "listings counter")
	}
	if d.failures, err = meter.Int64Counter("scraper.failures",
		metric.WithDescription("Store adapter calls that failed or panicked")); err != nil {
		return nil, errors.Wrap(err, "failures counter")
	}
	if d.duration, err = meter.Float64Histogram("scraper.duration",
		metric.WithDescription("Store adapter call duration"),
		metric.WithUnit("s")); err != nil {
		return nil, errors.Wrap(err, "duration histogram")
	}
	return d, nil
}

// Stores returns the registered storefronts in order.
func (d *Dispatcher) Stores() []store.ID {
	out := make([]store.ID, len(d.adapters))
	for i, a := range d.adapters {
		out[i] = a.Store()
	}
	return out
}

// SearchAllStores queries every adapter concurrently and returns the
// concatenation of their listings in registration order. It waits for all
// adapters to settle and never fails.
func (d *Dispatcher) SearchAllStores(ctx context.Context, query string) []product.Listing {
	results := make([][]product.Listing, len(d.adapters))

	// No WithContext: one adapter failing must not cancel the rest.
	var g errgroup.Group
	for i, a := range d.adapters {
		g.Go(func() error {
			results[i] = d.call(ctx, a, query)
			return nil
		})
	}
	_ = g.Wait()

	var out []product.Listing
	for _, r := range results {
		out = append(out, r...)
	}
	if len(out) == 0 {
		zctx.From(ctx).Warn("No store returned listings",
			zap.String("query", query),
			zap.Int("adapters", len(d.adapters)),
		)
	}
	return out
}

type outcome struct {
	listings []product.Listing
	err      error
}

func (d *Dispatcher) call(ctx context.Context, a Adapter, query string) []product.Listing {
	st := string(a.Store())
	attrs := metric.WithAttributes(attribute.String("store", st))

	ctx, span := d.tracer.Start(ctx, "scraper.Search",
		trace.WithAttributes(attribute.String("store", st)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errors.New(fmt.Sprint("panic: ", r))}
			}
		}()
		res, err := a.Search(ctx, query)
		done <- outcome{listings: res, err: err}
	}()

	// An adapter that ignores its context is abandoned at the deadline.
	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		res = outcome{err: errors.Wrap(ctx.Err(), "adapter deadline")}
	}
	d.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
		d.failures.Add(ctx, 1, attrs)
		zctx.From(ctx).Warn("Store adapter failed",
			zap.String("store", st),
			zap.String("query", query),
			zap.Error(res.err),
		)
		return nil
	}

	valid := make([]product.Listing, 0, len(res.listings))
	for _, l := range res.listings {
		if err := l.Validate(); err != nil {
			zctx.From(ctx).Debug("Drop listing", zap.Error(err))
			continue
		}
		valid = append(valid, l)
	}
	d.listings.Add(ctx, int64(len(valid)), attrs)
	span.SetAttributes(attribute.Int("listings", len(valid)))
	return valid
}
