// Command seed-db fills the database with a fixed sample catalog and a price
// history per store, for demos and local development.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bestdeal/internal/domain/alert"
	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
	"github.com/xenking/bestdeal/internal/storage/postgres"
)

// sampleProduct is a catalog entry with a list price per store.
type sampleProduct struct {
	name     string
	category string
	imageURL string
	prices   map[store.ID]int64
}

var catalog = []sampleProduct{
	{
		name:     "Apple iPhone 15 (128 GB) - Black",
		category: "Electronics",
		imageURL: "https://m.media-amazon.com/images/I/71657TiFeHL._SX679_.jpg",
		prices:   map[store.ID]int64{store.Amazon: 69900, store.Flipkart: 68999},
	},
	{
		name:     "Samsung Galaxy S24 Ultra 5G (256 GB)",
		category: "Electronics",
		imageURL: "https://m.media-amazon.com/images/I/71CXhVhpM0L._SX679_.jpg",
		prices:   map[store.ID]int64{store.Amazon: 129999, store.Flipkart: 131999},
	},
	{
		name:     "Nike Air Max 270 Running Shoes",
		category: "Footwear",
		imageURL: "https://static.nike.com/a/images/air-max-270.jpg",
		prices:   map[store.ID]int64{store.Amazon: 12995, store.Flipkart: 11499, store.Myntra: 12495},
	},
	{
		name:     "Sony WH-1000XM5 Wireless Headphones",
		category: "Electronics",
		imageURL: "https://m.media-amazon.com/images/I/61vJtKbAssL._SX679_.jpg",
		prices:   map[store.ID]int64{store.Amazon: 29990, store.Flipkart: 30990},
	},
	{
		name:     "Levis 511 Slim Fit Jeans",
		category: "Fashion",
		imageURL: "https://assets.ajio.com/medias/levis-511.jpg",
		prices:   map[store.ID]int64{store.Myntra: 2999, store.Ajio: 2799},
	},
}

func main() {
	var (
		databaseURL string
		days        int
		demoUser    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&days, "days", 30, "days of price history per store")
	flag.StringVar(&demoUser, "demo-user", "demo", "user id that receives sample alerts; empty skips alerts")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, days, demoUser); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string, days int, demoUser string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	ids, err := seedCatalog(ctx,
		postgres.NewProductRepository(pool),
		postgres.NewObservationRepository(pool),
		days, time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if demoUser != "" {
		if err := seedAlerts(ctx, postgres.NewAlertRepository(pool), demoUser, ids); err != nil {
			return errors.Wrap(err, "seed alerts")
		}
	}

	return nil
}

// seedCatalog creates every catalog product and appends its history. It
// returns product ids in catalog order.
func seedCatalog(
	ctx context.Context,
	products product.Repository,
	obs product.ObservationRepository,
	days int,
	now time.Time,
) ([]string, error) {
	ids := make([]string, 0, len(catalog))
	for _, p := range catalog {
		id, err := products.FindOrCreate(ctx, product.NewProduct{
			Name:     p.name,
			Brand:    product.ExtractBrand(p.name),
			Category: p.category,
			ImageURL: p.imageURL,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "create product %q", p.name)
		}
		ids = append(ids, id)

		count := 0
		for st, list := range p.prices {
			for _, o := range history(id, st, decimal.NewFromInt(list), days, now) {
				if err := obs.Append(ctx, o); err != nil {
					return nil, errors.Wrapf(err, "append %s price for %q", st, p.name)
				}
				count++
			}
		}

		slog.Info("seeded product",
			slog.String("id", id),
			slog.String("name", p.name),
			slog.Int("observations", count),
		)
	}
	return ids, nil
}

// history returns one observation per day for the last days days, oldest
// first. Prices follow a fixed weekly sale pattern below the list price so
// trends and deal checks have something to find.
func history(productID string, st store.ID, list decimal.Decimal, days int, now time.Time) []product.Observation {
	out := make([]product.Observation, 0, days)
	for d := days - 1; d >= 0; d-- {
		off := decimal.NewFromInt(int64((d * 7) % 11))
		price := list.Sub(list.Mul(off).Div(decimal.NewFromInt(100))).Round(0)
		out = append(out, product.NewObservation(productID, product.Offer{
			Store:         st,
			Price:         price,
			OriginalPrice: &list,
			InStock:       d%9 != 4,
		}, now.AddDate(0, 0, -d)))
	}
	return out
}

// seedAlerts registers one alert per product at 90% of its cheapest list
// price.
func seedAlerts(ctx context.Context, alerts alert.Repository, userID string, ids []string) error {
	for i, id := range ids {
		var lowest decimal.Decimal
		for _, v := range catalog[i].prices {
			if p := decimal.NewFromInt(v); lowest.IsZero() || p.LessThan(lowest) {
				lowest = p
			}
		}
		n := alert.NewAlert{
			UserID:      userID,
			ProductID:   id,
			TargetPrice: lowest.Mul(decimal.RequireFromString("0.9")).Round(0),
		}
		if err := n.Validate(); err != nil {
			return errors.Wrapf(err, "alert for %s", id)
		}
		a, err := alerts.Create(ctx, n)
		if err != nil {
			return errors.Wrapf(err, "create alert for %s", id)
		}

		slog.Info("seeded alert", slog.String("id", a.ID), slog.String("target", a.TargetPrice.String()))
	}
	return nil
}
