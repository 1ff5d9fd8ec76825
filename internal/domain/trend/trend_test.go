package trend

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func obs(price int64, st store.ID, daysAgo int) product.Observation {
	return product.Observation{
		ProductID:  "p1",
		Store:      st,
		Price:      decimal.NewFromInt(price),
		Currency:   "INR",
		ObservedAt: fixedNow.AddDate(0, 0, -daysAgo),
	}
}

func TestCompute_Empty(t *testing.T) {
	tr, ok := Compute(nil, 30, fixedNow)
	assert.False(t, ok)
	assert.Nil(t, tr)

	// Everything outside the window counts as empty.
	tr, ok = Compute([]product.Observation{obs(100, store.Amazon, 45)}, 30, fixedNow)
	assert.False(t, ok)
	assert.Nil(t, tr)
}

func TestCompute_SingleObservation(t *testing.T) {
	tr, ok := Compute([]product.Observation{obs(12999, store.Amazon, 1)}, 30, fixedNow)
	require.True(t, ok)

	want := decimal.NewFromInt(12999)
	assert.True(t, tr.Lowest.Equal(want))
	assert.True(t, tr.Highest.Equal(want))
	assert.True(t, tr.Average.Equal(want))
	assert.True(t, tr.Current.Equal(want))
	assert.Equal(t, 0, tr.ChangePercent)
	assert.True(t, tr.ChangeAmount.IsZero())
	assert.Len(t, tr.History, 1)
}

func TestCompute_Window(t *testing.T) {
	in := []product.Observation{
		obs(900, store.Flipkart, 2), // current, out of order on purpose
		obs(1000, store.Amazon, 20),
		obs(1200, store.Amazon, 10),
		obs(5000, store.Amazon, 40), // outside window
	}
	tr, ok := Compute(in, 30, fixedNow)
	require.True(t, ok)

	assert.Equal(t, "p1", tr.ProductID)
	assert.True(t, tr.Lowest.Equal(decimal.NewFromInt(900)))
	assert.True(t, tr.Highest.Equal(decimal.NewFromInt(1200)))
	// (1000+1200+900)/3 = 1033.33 -> 1033
	assert.True(t, tr.Average.Equal(decimal.NewFromInt(1033)), "average %s", tr.Average)
	assert.True(t, tr.Current.Equal(decimal.NewFromInt(900)))
	assert.True(t, tr.ChangeAmount.Equal(decimal.NewFromInt(-133)))
	// -133/1033*100 = -12.87 -> -13
	assert.Equal(t, -13, tr.ChangePercent)

	require.Len(t, tr.History, 3)
	for i := 1; i < len(tr.History); i++ {
		assert.False(t, tr.History[i].ObservedAt.Before(tr.History[i-1].ObservedAt))
	}
	assert.Equal(t, store.Flipkart, tr.History[2].Store)
}

func TestWindowDays(t *testing.T) {
	assert.Equal(t, DefaultWindowDays, WindowDays(0))
	assert.Equal(t, DefaultWindowDays, WindowDays(-7))
	assert.Equal(t, 7, WindowDays(7))
	assert.Equal(t, MaxWindowDays, WindowDays(10000))
}

type mockObservationRepo struct {
	list      []product.Observation
	err       error
	gotStore  *store.ID
	gotSince  time.Time
	gotProdID string
}

func (m *mockObservationRepo) Append(_ context.Context, _ product.Observation) error { return nil }

func (m *mockObservationRepo) List(_ context.Context, productID string, st *store.ID, since time.Time) ([]product.Observation, error) {
	m.gotProdID, m.gotStore, m.gotSince = productID, st, since
	return m.list, m.err
}

func (m *mockObservationRepo) Latest(_ context.Context, _ string, _ *store.ID) (*product.Observation, error) {
	return nil, product.ErrNoObservations
}

func (m *mockObservationRepo) LatestPerStore(_ context.Context, _ string) ([]product.Observation, error) {
	return nil, nil
}

func newTestService(repo *mockObservationRepo) *Service {
	s := NewService(repo)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestService_Get(t *testing.T) {
	t.Run("trend", func(t *testing.T) {
		repo := &mockObservationRepo{list: []product.Observation{obs(100, store.Amazon, 3)}}
		st := store.Amazon
		tr, err := newTestService(repo).Get(context.Background(), "p1", &st, 7)
		require.NoError(t, err)
		assert.True(t, tr.Current.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, "p1", repo.gotProdID)
		require.NotNil(t, repo.gotStore)
		assert.Equal(t, store.Amazon, *repo.gotStore)
		assert.Equal(t, fixedNow.AddDate(0, 0, -7), repo.gotSince)
	})

	t.Run("no observations", func(t *testing.T) {
		_, err := newTestService(&mockObservationRepo{}).Get(context.Background(), "p1", nil, 30)
		require.ErrorIs(t, err, product.ErrNoObservations)
	})

	t.Run("repository error", func(t *testing.T) {
		boom := errors.New("connection reset")
		_, err := newTestService(&mockObservationRepo{err: boom}).Get(context.Background(), "p1", nil, 30)
		require.ErrorIs(t, err, boom)
	})
}

func TestService_History(t *testing.T) {
	repo := &mockObservationRepo{list: []product.Observation{
		obs(300, store.Amazon, 1),
		obs(100, store.Amazon, 5),
	}}
	points, err := newTestService(repo).History(context.Background(), "p1", nil, 30)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.True(t, points[0].Price.Equal(decimal.NewFromInt(100)))

	empty, err := newTestService(&mockObservationRepo{}).History(context.Background(), "p1", nil, 30)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
