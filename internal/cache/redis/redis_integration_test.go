//go:build integration

package redis

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
	"github.com/xenking/bestdeal/internal/wire"
)

var client *Client

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	rc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start redis: %v", err)
	}
	defer func() { _ = rc.Terminate(context.Background()) }()

	endpoint, err := rc.Endpoint(ctx, "")
	if err != nil {
		log.Fatalf("endpoint: %v", err)
	}
	client, err = New(ctx, ClientConfig{Addr: endpoint})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer func() { _ = client.Close() }()

	return m.Run()
}

func TestSearchCache(t *testing.T) {
	ctx := context.Background()
	cache := NewSearchCache(client, time.Minute)

	_, ok, err := cache.Get(ctx, "nike air max")
	require.NoError(t, err)
	assert.False(t, ok)

	groups := []wire.IdentifiedGroup{{
		ID: "p1",
		Group: product.Group{
			Name:   "Nike Air Max 270",
			Offers: []product.Offer{{Store: store.Flipkart, Price: decimal.NewFromInt(11499), SourceURL: "https://flipkart.com/x"}},
		},
	}}
	require.NoError(t, cache.Set(ctx, "Nike Air Max", groups))

	// Keys are normalized, so spacing and case do not matter.
	got, ok, err := cache.Get(ctx, "nike  air max")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
	assert.True(t, got[0].Group.Offers[0].Price.Equal(decimal.NewFromInt(11499)))
}

func TestLockManager(t *testing.T) {
	ctx := context.Background()
	locks := NewLockManager(client)

	unlock, err := locks.Acquire(ctx, "iphone 15", time.Minute)
	require.NoError(t, err)

	_, err = locks.Acquire(ctx, "iPhone 15", time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)

	unlock()
	unlock()

	again, err := locks.Acquire(ctx, "iphone 15", time.Minute)
	require.NoError(t, err)
	again()
}
