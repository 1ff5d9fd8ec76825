// Package search answers product queries from stored products or by
// scraping every configured store, grouping the results and persisting them.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/wire"
)

// Source tells where search results came from.
type Source string

const (
	SourceDatabase Source = "database"
	SourceScraped  Source = "scraped"
)

const (
	DefaultStoredLimit  = 10
	DefaultPersistLimit = 5
	DefaultLockTTL      = 30 * time.Second
	DefaultLockWait     = 3 * time.Second

	lockPoll = 250 * time.Millisecond
)

// Result is the answer to one search.
type Result struct {
	Groups []wire.IdentifiedGroup
	Source Source
}

// Dispatcher fans a query out to every store.
type Dispatcher interface {
	SearchAllStores(ctx context.Context, query string) []product.Listing
}

// Cache keeps recently scraped groups per query.
type Cache interface {
	Get(ctx context.Context, query string) ([]wire.IdentifiedGroup, bool, error)
	Set(ctx context.Context, query string, groups []wire.IdentifiedGroup) error
}

// ErrLockHeld is returned by Locker.Acquire when another caller is already
// scraping the query.
var ErrLockHeld = errors.New("scrape lock held")

// Locker de-duplicates concurrent scrapes of one query. Acquire returns
// ErrLockHeld on contention; any other error means the lock backend failed.
type Locker interface {
	Acquire(ctx context.Context, query string, ttl time.Duration) (func(), error)
}

// Archive keeps the raw listings of each scrape.
type Archive interface {
	Store(ctx context.Context, query string, listings []product.Listing) (string, error)
}

// Config tunes the search policy.
type Config struct {
	// PreferStored answers from stored products when any match the query.
	PreferStored bool
	StoredLimit  int
	// PersistLimit caps how many groups of a scrape are stored.
	PersistLimit int
	LockTTL      time.Duration
	LockWait     time.Duration
}

func (c *Config) setDefaults() {
	if c.StoredLimit <= 0 {
		c.StoredLimit = DefaultStoredLimit
	}
	if c.PersistLimit <= 0 {
		c.PersistLimit = DefaultPersistLimit
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.LockWait <= 0 {
		c.LockWait = DefaultLockWait
	}
}

// Service runs searches.
type Service struct {
	dispatcher Dispatcher
	products   product.Repository
	obs        product.ObservationRepository
	cfg        Config

	cache   Cache
	locker  Locker
	archive Archive

	now func() time.Time
}

// Option configures optional collaborators of Service.
type Option func(*Service)

func WithCache(c Cache) Option     { return func(s *Service) { s.cache = c } }
func WithLocker(l Locker) Option   { return func(s *Service) { s.locker = l } }
func WithArchive(a Archive) Option { return func(s *Service) { s.archive = a } }

func NewService(
	d Dispatcher,
	products product.Repository,
	obs product.ObservationRepository,
	cfg Config,
	opts ...Option,
) *Service {
	cfg.setDefaults()
	s := &Service{
		dispatcher: d,
		products:   products,
		obs:        obs,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search returns grouped offers for query. An empty query is rejected with
// product.ErrEmptyQuery.
func (s *Service) Search(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, product.ErrEmptyQuery
	}

	if s.cfg.PreferStored {
		groups, err := s.stored(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(groups) > 0 {
			return &Result{Groups: groups, Source: SourceDatabase}, nil
		}
	}

	if groups, ok := s.cached(ctx, query); ok {
		return &Result{Groups: groups, Source: SourceScraped}, nil
	}

	if s.locker != nil {
		unlock, err := s.locker.Acquire(ctx, query, s.cfg.LockTTL)
		switch {
		case err == nil:
			defer unlock()
		case errors.Is(err, ErrLockHeld):
			if s.cache == nil {
				break
			}
			// Give the holder a moment to fill the cache before scraping
			// ourselves.
			if groups, ok := s.waitCached(ctx, query); ok {
				return &Result{Groups: groups, Source: SourceScraped}, nil
			}
		default:
			zctx.From(ctx).Warn("Scrape lock failed", zap.String("query", query), zap.Error(err))
		}
	}

	groups, err := s.scrape(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Result{Groups: groups, Source: SourceScraped}, nil
}

// stored builds groups from products matching query, one offer per store
// taken from the latest observation.
func (s *Service) stored(ctx context.Context, query string) ([]wire.IdentifiedGroup, error) {
	found, err := s.products.Search(ctx, query, s.cfg.StoredLimit)
	if err != nil {
		return nil, errors.Wrap(err, "search stored products")
	}
	groups := make([]wire.IdentifiedGroup, 0, len(found))
	for _, p := range found {
		latest, err := s.obs.LatestPerStore(ctx, p.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "latest prices of %s", p.ID)
		}
		g := product.Group{Name: p.Name, ImageURL: p.ImageURL}
		for _, o := range latest {
			g.Offers = append(g.Offers, product.Offer{
				Store:         o.Store,
				Price:         o.Price,
				OriginalPrice: o.OriginalPrice,
				SourceURL:     o.SourceURL,
				InStock:       o.InStock,
			})
		}
		groups = append(groups, wire.IdentifiedGroup{ID: p.ID, Group: g})
	}
	return groups, nil
}

func (s *Service) cached(ctx context.Context, query string) ([]wire.IdentifiedGroup, bool) {
	if s.cache == nil {
		return nil, false
	}
	groups, ok, err := s.cache.Get(ctx, query)
	if err != nil {
		zctx.From(ctx).Warn("Search cache read failed", zap.String("query", query), zap.Error(err))
		return nil, false
	}
	return groups, ok
}

func (s *Service) waitCached(ctx context.Context, query string) ([]wire.IdentifiedGroup, bool) {
	deadline := time.NewTimer(s.cfg.LockWait)
	defer deadline.Stop()
	tick := time.NewTicker(lockPoll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-deadline.C:
			return nil, false
		case <-tick.C:
			if groups, ok := s.cached(ctx, query); ok {
				return groups, true
			}
		}
	}
}

func (s *Service) scrape(ctx context.Context, query string) ([]wire.IdentifiedGroup, error) {
	lg := zctx.From(ctx)

	listings := s.dispatcher.SearchAllStores(ctx, query)
	grouped := product.GroupListings(listings)
	lg.Info("Scraped search",
		zap.String("query", query),
		zap.Int("listings", len(listings)),
		zap.Int("groups", len(grouped)),
	)

	groups := make([]wire.IdentifiedGroup, len(grouped))
	now := s.now()
	for i, g := range grouped {
		groups[i].Group = g
		if i >= s.cfg.PersistLimit {
			continue
		}
		id, err := s.persist(ctx, g, now)
		if err != nil {
			return nil, errors.Wrapf(err, "persist group %q", g.Name)
		}
		groups[i].ID = id
	}

	if s.cache != nil && len(groups) > 0 {
		if err := s.cache.Set(ctx, query, groups); err != nil {
			lg.Warn("Search cache write failed", zap.String("query", query), zap.Error(err))
		}
	}
	if s.archive != nil && len(listings) > 0 {
		if key, err := s.archive.Store(ctx, query, listings); err != nil {
			lg.Warn("Snapshot archive failed", zap.String("query", query), zap.Error(err))
		} else {
			lg.Debug("Snapshot archived", zap.String("key", key))
		}
	}
	return groups, nil
}

func (s *Service) persist(ctx context.Context, g product.Group, at time.Time) (string, error) {
	id, err := s.products.FindOrCreate(ctx, product.NewProduct{
		Name:     g.Name,
		Brand:    product.ExtractBrand(g.Name),
		ImageURL: g.ImageURL,
	})
	if err != nil {
		return "", errors.Wrap(err, "find or create product")
	}
	for _, o := range g.Offers {
		if err := s.obs.Append(ctx, product.NewObservation(id, o, at)); err != nil {
			return "", errors.Wrapf(err, "append %s observation", o.Store)
		}
	}
	return id, nil
}
