package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
	"github.com/xenking/bestdeal/internal/storage/memory"
	"github.com/xenking/bestdeal/internal/wire"
)

// --- Mock implementations ---

type failingObservations struct {
	product.ObservationRepository
}

func (failingObservations) Append(context.Context, product.Observation) error {
	return errors.New("disk full")
}

// --- Helpers ---

func writeSnapshotFile(t *testing.T, path, query string, at time.Time, listings []product.Listing) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	gz := pgzip.NewWriter(f)
	require.NoError(t, wire.WriteSnapshots(gz, query, at, listings))
	require.NoError(t, gz.Close())
}

func sampleListings() []product.Listing {
	return []product.Listing{
		{Name: "Nike Air Max 270", Price: decimal.NewFromInt(12995), Store: store.Amazon, SourceURL: "https://www.amazon.in/dp/B07", InStock: true},
		{Name: "Nike Air Max 270", Price: decimal.NewFromInt(11499), Store: store.Flipkart, SourceURL: "https://www.flipkart.com/p/itm1", InStock: true},
		{Name: "Apple iPhone 15", Price: decimal.NewFromInt(69900), Store: store.Amazon, SourceURL: "https://www.amazon.in/dp/B0C", InStock: true},
		// Rejected by validation.
		{Name: "", Price: decimal.NewFromInt(10), Store: store.Amazon, SourceURL: "https://www.amazon.in/dp/X"},
	}
}

// --- Tests ---

func TestRun_ImportsAndDeduplicates(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	writeSnapshotFile(t, filepath.Join(dir, "2026/03/01/nike-a.ndjson.gz"), "nike", at, sampleListings())
	// The same run archived twice.
	writeSnapshotFile(t, filepath.Join(dir, "2026/03/01/nike-b.ndjson.gz"), "nike", at, sampleListings())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))

	db := memory.New()
	im := newImporter(db.Products(), db.Observations(), 1000)
	require.NoError(t, run(t.Context(), dirSource{root: dir}, im, 2))

	assert.Equal(t, 2, im.stats.files)
	assert.Equal(t, 2, im.stats.batches)
	assert.Equal(t, 2, im.stats.products)
	assert.Equal(t, 3, im.stats.written)
	assert.Equal(t, 3, im.stats.skipped)
	assert.Equal(t, 2, im.stats.invalid)

	found, err := db.Products().Search(t.Context(), "nike", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)

	latest, err := db.Observations().LatestPerStore(t.Context(), found[0].ID)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	for _, o := range latest {
		assert.True(t, o.ObservedAt.Equal(at))
		assert.Equal(t, "INR", o.Currency)
	}
}

func TestRun_SplitsBatchesByRun(t *testing.T) {
	dir := t.TempDir()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	listings := sampleListings()[:1]
	writeSnapshotFile(t, filepath.Join(dir, "a.ndjson.gz"), "nike", first, listings)
	writeSnapshotFile(t, filepath.Join(dir, "b.ndjson.gz"), "nike", second, listings)

	db := memory.New()
	im := newImporter(db.Products(), db.Observations(), 1000)
	require.NoError(t, run(t.Context(), dirSource{root: dir}, im, 1))

	assert.Equal(t, 2, im.stats.written)
	assert.Zero(t, im.stats.skipped)
}

func TestRun_AppendError(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotFile(t, filepath.Join(dir, "a.ndjson.gz"), "nike", time.Now(), sampleListings())

	db := memory.New()
	im := newImporter(db.Products(), failingObservations{}, 1000)
	err := run(t.Context(), dirSource{root: dir}, im, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRun_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.ndjson.gz"), []byte("not gzip"), 0o644))

	db := memory.New()
	im := newImporter(db.Products(), db.Observations(), 1000)
	err := run(t.Context(), dirSource{root: dir}, im, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.ndjson.gz")
}
