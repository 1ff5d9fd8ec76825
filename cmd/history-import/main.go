// Command history-import replays archived search snapshots into the price
// history. Input is gzip-compressed NDJSON as written by the snapshot
// archive, read from a local directory or an S3 prefix.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	s3blob "github.com/xenking/bestdeal/internal/blob/s3"
	"github.com/xenking/bestdeal/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100
)

func main() {
	var (
		dataDir     string
		databaseURL string
		bucket      string
		prefix      string
		region      string
		endpoint    string
		pathStyle   bool
		workers     int
		capacity    uint
	)

	flag.StringVar(&dataDir, "data-dir", "", "directory containing *.ndjson.gz snapshot files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&bucket, "bucket", "", "S3 bucket to read snapshots from instead of --data-dir")
	flag.StringVar(&prefix, "prefix", s3blob.SnapshotPrefix, "S3 key prefix")
	flag.StringVar(&region, "region", "us-east-1", "S3 region")
	flag.StringVar(&endpoint, "endpoint", "", "S3-compatible endpoint")
	flag.BoolVar(&pathStyle, "path-style", false, "use path-style S3 addressing")
	flag.IntVar(&workers, "workers", 4, "files decoded concurrently")
	flag.UintVar(&capacity, "expected-records", 1_000_000, "expected record count, sizes the de-duplication filter")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if (dataDir == "") == (bucket == "") {
		slog.Error("exactly one of --data-dir or --bucket is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	src, err := openSource(ctx, dataDir, s3blob.ClientConfig{
		Endpoint:       endpoint,
		Region:         region,
		Bucket:         bucket,
		UseSSL:         true,
		ForcePathStyle: pathStyle,
	}, prefix)
	if err != nil {
		slog.Error("history import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := importHistory(ctx, databaseURL, src, workers, capacity); err != nil {
		slog.Error("history import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("history import completed successfully")
}

func openSource(ctx context.Context, dataDir string, cfg s3blob.ClientConfig, prefix string) (source, error) {
	if dataDir != "" {
		return dirSource{root: dataDir}, nil
	}
	c, err := s3blob.New(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create s3 client")
	}
	return bucketSource{r: s3blob.NewReader(c), prefix: prefix}, nil
}

func importHistory(ctx context.Context, databaseURL string, src source, workers int, capacity uint) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	im := newImporter(
		postgres.NewProductRepository(pool),
		postgres.NewObservationRepository(pool),
		capacity,
	)
	if err := run(ctx, src, im, workers); err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("files", im.stats.files),
		slog.Int("batches", im.stats.batches),
		slog.Int("products", im.stats.products),
		slog.Int("written", im.stats.written),
		slog.Int("duplicates", im.stats.skipped),
		slog.Int("invalid", im.stats.invalid),
	)
	return nil
}
