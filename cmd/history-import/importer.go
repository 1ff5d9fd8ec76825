package main

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	s3blob "github.com/xenking/bestdeal/internal/blob/s3"
	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/wire"
)

const snapshotSuffix = ".ndjson.gz"

// source enumerates and opens snapshot files.
type source interface {
	list(ctx context.Context) ([]string, error)
	open(ctx context.Context, name string) (io.ReadCloser, error)
}

// dirSource reads snapshot files below a local directory.
type dirSource struct {
	root string
}

func (s dirSource) list(context.Context) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, snapshotSuffix) {
			names = append(names, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", s.root)
	}
	slices.Sort(names)
	return names, nil
}

func (s dirSource) open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// bucketSource reads snapshot objects under a bucket prefix.
type bucketSource struct {
	r      *s3blob.Reader
	prefix string
}

func (s bucketSource) list(ctx context.Context) ([]string, error) {
	keys, err := s.r.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(keys, func(k string) bool {
		return !strings.HasSuffix(k, snapshotSuffix)
	}), nil
}

func (s bucketSource) open(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.r.Get(ctx, name)
}

// batch is the set of listings captured by one search run.
type batch struct {
	query    string
	at       time.Time
	listings []product.Listing
}

// decodeFile groups the records of one snapshot file into batches by
// (query, observedAt), in first-seen order.
func decodeFile(ctx context.Context, src source, name string) ([]batch, int, error) {
	rc, err := src.open(ctx, name)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "open %s", name)
	}
	defer func() { _ = rc.Close() }()

	gz, err := pgzip.NewReader(rc)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "create gzip reader for %s", name)
	}
	defer func() { _ = gz.Close() }()

	var (
		batches []batch
		index   = map[string]int{}
		invalid int
	)
	err = wire.ReadSnapshots(gz, func(s wire.Snapshot) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Listing.Validate(); err != nil {
			invalid++
			return nil
		}
		key := s.Query + "\x00" + s.ObservedAt.UTC().Format(time.RFC3339Nano)
		i, ok := index[key]
		if !ok {
			i = len(batches)
			index[key] = i
			batches = append(batches, batch{query: s.Query, at: s.ObservedAt})
		}
		batches[i].listings = append(batches[i].listings, s.Listing)
		return nil
	})
	if err != nil {
		return nil, 0, errors.Wrapf(err, "decode %s", name)
	}
	return batches, invalid, nil
}

// stats counts what an import did.
type stats struct {
	files    int
	batches  int
	written  int
	skipped  int
	invalid  int
	products int
}

// importer writes batches into the price history. It is not safe for
// concurrent use; run feeds it from a single goroutine.
type importer struct {
	products product.Repository
	obs      product.ObservationRepository
	seen     *bloom.BloomFilter
	created  map[string]struct{}
	stats    stats
}

func newImporter(products product.Repository, obs product.ObservationRepository, capacity uint) *importer {
	return &importer{
		products: products,
		obs:      obs,
		seen:     bloom.NewWithEstimates(capacity, bloomFPR),
		created:  map[string]struct{}{},
	}
}

// apply groups a batch like a live search does and appends one observation
// per offer. Offers already imported in this run are skipped.
func (im *importer) apply(ctx context.Context, b batch) error {
	im.stats.batches++
	for _, g := range product.GroupListings(b.listings) {
		id, err := im.products.FindOrCreate(ctx, product.NewProduct{
			Name:     g.Name,
			Brand:    product.ExtractBrand(g.Name),
			ImageURL: g.ImageURL,
		})
		if err != nil {
			return errors.Wrapf(err, "find or create %q", g.Name)
		}
		if _, ok := im.created[id]; !ok {
			im.created[id] = struct{}{}
			im.stats.products++
		}

		for _, o := range g.Offers {
			key := strings.Join([]string{
				id,
				string(o.Store),
				strconv.FormatInt(b.at.UnixNano(), 10),
				o.Price.String(),
			}, "|")
			if im.seen.TestOrAddString(key) {
				im.stats.skipped++
				continue
			}
			if err := im.obs.Append(ctx, product.NewObservation(id, o, b.at)); err != nil {
				return errors.Wrapf(err, "append observation for %q", g.Name)
			}
			im.stats.written++
		}
	}
	return nil
}

// run decodes files concurrently and applies their batches in one goroutine.
func run(ctx context.Context, src source, im *importer, workers int) error {
	names, err := src.list(ctx)
	if err != nil {
		return errors.Wrap(err, "list snapshot files")
	}
	slog.Info("snapshot files found", slog.Int("count", len(names)))

	type decoded struct {
		batches []batch
		invalid int
	}
	files := make(chan decoded)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(files)

		p, pctx := errgroup.WithContext(gctx)
		p.SetLimit(max(workers, 1))
		for _, name := range names {
			p.Go(func() error {
				batches, invalid, err := decodeFile(pctx, src, name)
				if err != nil {
					return err
				}
				select {
				case files <- decoded{batches: batches, invalid: invalid}:
					return nil
				case <-pctx.Done():
					return pctx.Err()
				}
			})
		}
		return p.Wait()
	})
	g.Go(func() error {
		for f := range files {
			im.stats.files++
			im.stats.invalid += f.invalid
			for _, b := range f.batches {
				if err := im.apply(gctx, b); err != nil {
					return err
				}
			}
			if im.stats.files%progressEvery == 0 {
				slog.Info("import progress",
					slog.Int("files", im.stats.files),
					slog.Int("written", im.stats.written),
				)
			}
		}
		return nil
	})
	return g.Wait()
}
