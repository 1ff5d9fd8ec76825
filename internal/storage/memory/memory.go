// Package memory implements the persistence gateway in process memory. It
// backs tests and database-less development runs.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/bestdeal/internal/domain/alert"
	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
)

var (
	_ product.Repository            = (*Products)(nil)
	_ product.ObservationRepository = (*Observations)(nil)
	_ alert.Repository              = (*Alerts)(nil)
)

// DB holds all in-memory tables behind one lock.
type DB struct {
	mu       sync.RWMutex
	now      func() time.Time
	products []product.Product
	byName   map[string]int
	obs      []product.Observation
	alerts   []alert.Alert
}

// New returns an empty database.
func New() *DB {
	return &DB{now: time.Now, byName: map[string]int{}}
}

// SetClock replaces the clock used for created and observed timestamps.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	db.now = now
	db.mu.Unlock()
}

// Products returns the product repository view.
func (db *DB) Products() *Products { return (*Products)(db) }

// Observations returns the observation repository view.
func (db *DB) Observations() *Observations { return (*Observations)(db) }

// Alerts returns the alert repository view.
func (db *DB) Alerts() *Alerts { return (*Alerts)(db) }

// Products implements product.Repository.
type Products DB

func (s *Products) FindOrCreate(_ context.Context, p product.NewProduct) (string, error) {
	db := (*DB)(s)
	db.mu.Lock()
	defer db.mu.Unlock()

	if i, ok := db.byName[p.Name]; ok {
		return db.products[i].ID, nil
	}
	created := product.Product{
		ID:        uuid.NewString(),
		Name:      p.Name,
		Brand:     p.Brand,
		Category:  p.Category,
		ImageURL:  p.ImageURL,
		CreatedAt: db.now(),
	}
	db.products = append(db.products, created)
	db.byName[p.Name] = len(db.products) - 1
	return created.ID, nil
}

func (s *Products) GetByID(_ context.Context, id string) (*product.Product, error) {
	db := (*DB)(s)
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, p := range db.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

// Search matches name or brand case-insensitively, newest first.
func (s *Products) Search(_ context.Context, query string, limit int) ([]product.Product, error) {
	db := (*DB)(s)
	db.mu.RLock()
	defer db.mu.RUnlock()

	q := strings.ToLower(query)
	var out []product.Product
	for i := len(db.products) - 1; i >= 0 && len(out) < limit; i-- {
		p := db.products[i]
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Brand), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Observations implements product.ObservationRepository.
type Observations DB

func (o *Observations) Append(_ context.Context, obs product.Observation) error {
	db := (*DB)(o)
	db.mu.Lock()
	defer db.mu.Unlock()

	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = db.now()
	}
	db.obs = append(db.obs, obs)
	return nil
}

func (o *Observations) List(_ context.Context, productID string, st *store.ID, since time.Time) ([]product.Observation, error) {
	db := (*DB)(o)
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []product.Observation
	for _, obs := range db.obs {
		if matches(obs, productID, st) && !obs.ObservedAt.Before(since) {
			out = append(out, obs)
		}
	}
	slices.SortStableFunc(out, func(a, b product.Observation) int {
		return a.ObservedAt.Compare(b.ObservedAt)
	})
	return out, nil
}

func (o *Observations) Latest(_ context.Context, productID string, st *store.ID) (*product.Observation, error) {
	db := (*DB)(o)
	db.mu.RLock()
	defer db.mu.RUnlock()

	var latest *product.Observation
	for i := range db.obs {
		obs := &db.obs[i]
		if !matches(*obs, productID, st) {
			continue
		}
		// Later appends win ties.
		if latest == nil || !obs.ObservedAt.Before(latest.ObservedAt) {
			latest = obs
		}
	}
	if latest == nil {
		return nil, product.ErrNoObservations
	}
	cp := *latest
	return &cp, nil
}

func (o *Observations) LatestPerStore(_ context.Context, productID string) ([]product.Observation, error) {
	db := (*DB)(o)
	db.mu.RLock()
	defer db.mu.RUnlock()

	latest := map[store.ID]product.Observation{}
	for _, obs := range db.obs {
		if obs.ProductID != productID {
			continue
		}
		if cur, ok := latest[obs.Store]; !ok || !obs.ObservedAt.Before(cur.ObservedAt) {
			latest[obs.Store] = obs
		}
	}
	out := make([]product.Observation, 0, len(latest))
	for _, obs := range latest {
		out = append(out, obs)
	}
	slices.SortFunc(out, func(a, b product.Observation) int {
		return cmp.Compare(a.Store, b.Store)
	})
	return out, nil
}

func matches(obs product.Observation, productID string, st *store.ID) bool {
	return obs.ProductID == productID && (st == nil || obs.Store == *st)
}

// Alerts implements alert.Repository.
type Alerts DB

func (a *Alerts) Create(_ context.Context, n alert.NewAlert) (*alert.Alert, error) {
	db := (*DB)(a)
	db.mu.Lock()
	defer db.mu.Unlock()

	created := alert.Alert{
		ID:          uuid.NewString(),
		UserID:      n.UserID,
		ProductID:   n.ProductID,
		TargetPrice: n.TargetPrice,
		Store:       n.Store,
		IsActive:    true,
		CreatedAt:   db.now(),
	}
	db.alerts = append(db.alerts, created)
	return &created, nil
}

func (a *Alerts) GetByID(_ context.Context, id string) (*alert.Alert, error) {
	db := (*DB)(a)
	db.mu.RLock()
	defer db.mu.RUnlock()

	i, err := db.alertIndex(id)
	if err != nil {
		return nil, err
	}
	cp := db.alerts[i]
	return &cp, nil
}

func (a *Alerts) ListActive(_ context.Context) ([]alert.Alert, error) {
	db := (*DB)(a)
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []alert.Alert
	for _, al := range db.alerts {
		if al.IsActive {
			out = append(out, al)
		}
	}
	return out, nil
}

func (a *Alerts) ListByUser(_ context.Context, userID string) ([]alert.Alert, error) {
	db := (*DB)(a)
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []alert.Alert
	for i := len(db.alerts) - 1; i >= 0; i-- {
		if db.alerts[i].UserID == userID {
			out = append(out, db.alerts[i])
		}
	}
	return out, nil
}

func (a *Alerts) Trigger(_ context.Context, id string, at time.Time) (bool, error) {
	db := (*DB)(a)
	db.mu.Lock()
	defer db.mu.Unlock()

	i, err := db.alertIndex(id)
	if err != nil || !db.alerts[i].IsActive {
		return false, nil
	}
	db.alerts[i].IsActive = false
	db.alerts[i].TriggeredAt = &at
	return true, nil
}

func (a *Alerts) SetActive(_ context.Context, id string, active bool) error {
	db := (*DB)(a)
	db.mu.Lock()
	defer db.mu.Unlock()

	i, err := db.alertIndex(id)
	if err != nil {
		return err
	}
	db.alerts[i].IsActive = active
	return nil
}

func (db *DB) alertIndex(id string) (int, error) {
	for i := range db.alerts {
		if db.alerts[i].ID == id {
			return i, nil
		}
	}
	return 0, errors.Wrapf(alert.ErrNotFound, "alert %q", id)
}
