package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bestdeal/internal/domain/store"
	"github.com/xenking/bestdeal/internal/domain/trend"
	"github.com/xenking/bestdeal/internal/storage/memory"
)

func TestHistory(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	list := decimal.NewFromInt(1000)

	obs := history("p1", store.Amazon, list, 30, now)
	require.Len(t, obs, 30)
	assert.True(t, obs[0].ObservedAt.Equal(now.AddDate(0, 0, -29)))
	assert.True(t, obs[29].ObservedAt.Equal(now))

	for _, o := range obs {
		assert.True(t, o.Price.LessThanOrEqual(list), o.Price.String())
		assert.True(t, o.Price.GreaterThanOrEqual(decimal.NewFromInt(900)), o.Price.String())
		assert.Equal(t, "INR", o.Currency)
		require.NotNil(t, o.DiscountPercent)
	}
	// Day zero sells at list price.
	assert.True(t, obs[29].Price.Equal(list))

	again := history("p1", store.Amazon, list, 30, now)
	assert.Equal(t, obs, again)
}

func TestSeedCatalog(t *testing.T) {
	ctx := t.Context()
	db := memory.New()
	now := time.Now().UTC()

	ids, err := seedCatalog(ctx, db.Products(), db.Observations(), 30, now)
	require.NoError(t, err)
	require.Len(t, ids, len(catalog))

	// Seeding is idempotent for products.
	again, err := seedCatalog(ctx, db.Products(), db.Observations(), 1, now)
	require.NoError(t, err)
	assert.Equal(t, ids, again)

	tr, err := trend.NewService(db.Observations()).Get(ctx, ids[2], store.Ptr(store.Flipkart), 30)
	require.NoError(t, err)
	assert.True(t, tr.Highest.Equal(decimal.NewFromInt(11499)))
	assert.True(t, tr.Lowest.LessThan(tr.Highest))

	require.NoError(t, seedAlerts(ctx, db.Alerts(), "demo", ids))
	alerts, err := db.Alerts().ListByUser(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, alerts, len(catalog))
}
