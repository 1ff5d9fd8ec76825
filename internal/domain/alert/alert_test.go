package alert

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

// --- Mock implementations ---

type trigger struct {
	id string
	at time.Time
}

type mockAlertRepo struct {
	alerts     map[string]*Alert
	active     []Alert
	listErr    error
	triggerErr error
	triggers   []trigger
	paused     map[string]bool
	setActive  map[string]bool
}

func (m *mockAlertRepo) Create(_ context.Context, n NewAlert) (*Alert, error) {
	return &Alert{ID: "new", UserID: n.UserID, ProductID: n.ProductID, TargetPrice: n.TargetPrice, Store: n.Store, IsActive: true}, nil
}

func (m *mockAlertRepo) GetByID(_ context.Context, id string) (*Alert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAlertRepo) ListActive(_ context.Context) ([]Alert, error) {
	return m.active, m.listErr
}

func (m *mockAlertRepo) ListByUser(_ context.Context, _ string) ([]Alert, error) { return nil, nil }

func (m *mockAlertRepo) Trigger(_ context.Context, id string, at time.Time) (bool, error) {
	if m.triggerErr != nil {
		return false, m.triggerErr
	}
	if m.paused[id] {
		return false, nil
	}
	m.triggers = append(m.triggers, trigger{id: id, at: at})
	return true, nil
}

func (m *mockAlertRepo) SetActive(_ context.Context, id string, active bool) error {
	if m.setActive == nil {
		m.setActive = map[string]bool{}
	}
	m.setActive[id] = active
	return nil
}

type latestKey struct {
	productID string
	store     store.ID
}

type mockObservationRepo struct {
	latest map[latestKey]decimal.Decimal
	err    error
}

func (m *mockObservationRepo) Append(_ context.Context, _ product.Observation) error { return nil }

func (m *mockObservationRepo) List(_ context.Context, _ string, _ *store.ID, _ time.Time) ([]product.Observation, error) {
	return nil, nil
}

func (m *mockObservationRepo) Latest(_ context.Context, productID string, st *store.ID) (*product.Observation, error) {
	if m.err != nil {
		return nil, m.err
	}
	key := latestKey{productID: productID}
	if st != nil {
		key.store = *st
	}
	price, ok := m.latest[key]
	if !ok {
		return nil, product.ErrNoObservations
	}
	return &product.Observation{ProductID: productID, Store: key.store, Price: price}, nil
}

func (m *mockObservationRepo) LatestPerStore(_ context.Context, _ string) ([]product.Observation, error) {
	return nil, nil
}

func newTestEvaluator(alerts *mockAlertRepo, obs *mockObservationRepo) *Evaluator {
	e := NewEvaluator(alerts, obs)
	e.now = func() time.Time { return fixedNow }
	return e
}

func activeAlert(id string, target int64) Alert {
	return Alert{ID: id, UserID: "u1", ProductID: "p1", TargetPrice: decimal.NewFromInt(target), IsActive: true}
}

// --- Tests ---

func TestAlertState(t *testing.T) {
	at := fixedNow
	assert.Equal(t, Active, Alert{IsActive: true}.State())
	assert.Equal(t, Triggered, Alert{TriggeredAt: &at}.State())
	assert.Equal(t, Paused, Alert{}.State())
}

func TestEvaluator_CheckAlerts(t *testing.T) {
	tests := []struct {
		name          string
		latest        map[latestKey]decimal.Decimal
		alert         Alert
		wantTriggered int
	}{
		{
			name:          "price equal to target triggers",
			latest:        map[latestKey]decimal.Decimal{{productID: "p1"}: decimal.NewFromInt(11999)},
			alert:         activeAlert("a1", 11999),
			wantTriggered: 1,
		},
		{
			name:          "price below target triggers",
			latest:        map[latestKey]decimal.Decimal{{productID: "p1"}: decimal.NewFromInt(9999)},
			alert:         activeAlert("a1", 11999),
			wantTriggered: 1,
		},
		{
			name:          "price above target does not trigger",
			latest:        map[latestKey]decimal.Decimal{{productID: "p1"}: decimal.NewFromInt(12000)},
			alert:         activeAlert("a1", 11999),
			wantTriggered: 0,
		},
		{
			name:          "no observation is skipped",
			latest:        nil,
			alert:         activeAlert("a1", 11999),
			wantTriggered: 0,
		},
		{
			name:   "store filter uses that store only",
			latest: map[latestKey]decimal.Decimal{{productID: "p1"}: decimal.NewFromInt(100), {productID: "p1", store: store.Amazon}: decimal.NewFromInt(20000)},
			alert: func() Alert {
				a := activeAlert("a1", 11999)
				a.Store = store.Ptr(store.Amazon)
				return a
			}(),
			wantTriggered: 0,
		},
		{
			name:   "inactive alerts are ignored",
			latest: map[latestKey]decimal.Decimal{{productID: "p1"}: decimal.NewFromInt(100)},
			alert: func() Alert {
				a := activeAlert("a1", 11999)
				a.IsActive = false
				return a
			}(),
			wantTriggered: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := &mockAlertRepo{}
			e := newTestEvaluator(alerts, &mockObservationRepo{latest: tt.latest})

			got, err := e.CheckAlerts(context.Background(), []Alert{tt.alert})
			require.NoError(t, err)
			assert.Equal(t, tt.wantTriggered, got)

			if tt.wantTriggered == 0 {
				assert.Empty(t, alerts.triggers)
				return
			}
			require.Len(t, alerts.triggers, 1)
			assert.Equal(t, trigger{id: "a1", at: fixedNow}, alerts.triggers[0])
		})
	}
}

func TestEvaluator_CheckAlerts_PausedAfterLoad(t *testing.T) {
	// a1 is paused between ListActive and the trigger write.
	alerts := &mockAlertRepo{paused: map[string]bool{"a1": true}}
	obs := &mockObservationRepo{latest: map[latestKey]decimal.Decimal{{productID: "p1"}: decimal.NewFromInt(100)}}

	got, err := newTestEvaluator(alerts, obs).CheckAlerts(context.Background(), []Alert{
		activeAlert("a1", 200),
		activeAlert("a2", 200),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, []trigger{{id: "a2", at: fixedNow}}, alerts.triggers)
}

func TestEvaluator_CheckAlerts_Errors(t *testing.T) {
	t.Run("trigger error propagates", func(t *testing.T) {
		boom := errors.New("write failed")
		alerts := &mockAlertRepo{triggerErr: boom}
		obs := &mockObservationRepo{latest: map[latestKey]decimal.Decimal{{productID: "p1"}: decimal.NewFromInt(100)}}

		got, err := newTestEvaluator(alerts, obs).CheckAlerts(context.Background(), []Alert{activeAlert("a1", 200)})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, got)
	})

	t.Run("observation error propagates", func(t *testing.T) {
		boom := errors.New("read failed")
		got, err := newTestEvaluator(&mockAlertRepo{}, &mockObservationRepo{err: boom}).
			CheckAlerts(context.Background(), []Alert{activeAlert("a1", 200)})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, got)
	})
}

func TestEvaluator_Run(t *testing.T) {
	alerts := &mockAlertRepo{active: []Alert{
		activeAlert("a1", 11999),
		activeAlert("a2", 5000),
		{ID: "a3", ProductID: "p2", TargetPrice: decimal.NewFromInt(1), IsActive: true},
	}}
	obs := &mockObservationRepo{latest: map[latestKey]decimal.Decimal{{productID: "p1"}: decimal.NewFromInt(11999)}}

	res, err := newTestEvaluator(alerts, obs).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Checked: 3, Triggered: 1}, res)

	_, err = newTestEvaluator(&mockAlertRepo{listErr: errors.New("down")}, obs).Run(context.Background())
	require.Error(t, err)
}

func TestEvaluator_RunLoop(t *testing.T) {
	alerts := &mockAlertRepo{}
	e := newTestEvaluator(alerts, &mockObservationRepo{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.RunLoop(ctx, 5*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunLoop did not stop after cancel")
	}
}

func TestService_Create(t *testing.T) {
	s := NewService(&mockAlertRepo{})

	a, err := s.Create(context.Background(), NewAlert{UserID: "u1", ProductID: "p1", TargetPrice: decimal.NewFromInt(999)})
	require.NoError(t, err)
	assert.Equal(t, Active, a.State())

	_, err = s.Create(context.Background(), NewAlert{UserID: "u1", ProductID: "p1"})
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestService_PauseResume(t *testing.T) {
	at := fixedNow
	repo := &mockAlertRepo{alerts: map[string]*Alert{
		"active":    {ID: "active", IsActive: true},
		"paused":    {ID: "paused"},
		"triggered": {ID: "triggered", TriggeredAt: &at},
	}}
	s := NewService(repo)
	ctx := context.Background()

	a, err := s.Pause(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, Paused, a.State())
	assert.False(t, repo.setActive["active"])

	_, err = s.Pause(ctx, "triggered")
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = s.Resume(ctx, "triggered")
	require.ErrorIs(t, err, ErrInvalidState)
	_, touched := repo.setActive["triggered"]
	assert.False(t, touched)

	a, err = s.Resume(ctx, "paused")
	require.NoError(t, err)
	assert.Equal(t, Active, a.State())
	assert.True(t, repo.setActive["paused"])

	_, err = s.Pause(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
