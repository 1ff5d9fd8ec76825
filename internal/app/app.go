package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	s3blob "github.com/xenking/bestdeal/internal/blob/s3"
	"github.com/xenking/bestdeal/internal/cache/redis"
	"github.com/xenking/bestdeal/internal/domain/alert"
	"github.com/xenking/bestdeal/internal/domain/deal"
	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/search"
	"github.com/xenking/bestdeal/internal/domain/store"
	"github.com/xenking/bestdeal/internal/domain/trend"
	"github.com/xenking/bestdeal/internal/handler"
	"github.com/xenking/bestdeal/internal/scraper"
	"github.com/xenking/bestdeal/internal/storage/memory"
	"github.com/xenking/bestdeal/internal/storage/postgres"
	"github.com/xenking/bestdeal/pkg/health"
	"github.com/xenking/bestdeal/pkg/httpmiddleware"
)

// repositories is the persistence gateway the services share.
type repositories struct {
	products     product.Repository
	observations product.ObservationRepository
	alerts       alert.Repository
}

// Run creates all dependencies, starts the HTTP server and the alert loop,
// and handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	var repos repositories
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
		repos = repositories{
			products:     postgres.NewProductRepository(pool),
			observations: postgres.NewObservationRepository(pool),
			alerts:       postgres.NewAlertRepository(pool),
		}
	} else {
		lg.Warn("No database configured, using in-memory storage")
		mem := memory.New()
		repos = repositories{
			products:     mem.Products(),
			observations: mem.Observations(),
			alerts:       mem.Alerts(),
		}
	}

	dispatcher, err := newDispatcher(cfg.Scraper, m)
	if err != nil {
		return errors.Wrap(err, "create dispatcher")
	}

	var searchOpts []search.Option
	if cfg.Redis.Enabled() {
		rc, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rc.Close() }()

		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(rc))
		searchOpts = append(searchOpts,
			search.WithCache(redis.NewSearchCache(rc, cfg.Redis.TTL)),
			search.WithLocker(redis.NewLockManager(rc)),
		)
		lg.Info("Search cache enabled", zap.Duration("ttl", cfg.Redis.TTL))
	}
	if cfg.Archive.Bucket != "" {
		bc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         true,
			ForcePathStyle: cfg.Archive.PathStyle,
		})
		if err != nil {
			return errors.Wrap(err, "create s3 client")
		}
		// Archive outages only cost snapshots; report them without failing startup.
		if err := bc.Health(ctx); err != nil {
			lg.Warn("Snapshot bucket unreachable", zap.String("bucket", cfg.Archive.Bucket), zap.Error(err))
		}
		searchOpts = append(searchOpts, search.WithArchive(s3blob.NewArchive(s3blob.NewWriter(bc))))
		lg.Info("Snapshot archive enabled", zap.String("bucket", cfg.Archive.Bucket))
	}

	// Domain services.
	searchSvc := search.NewService(dispatcher, repos.products, repos.observations, search.Config{
		PreferStored: cfg.Search.PreferStored,
		PersistLimit: cfg.Search.PersistLimit,
		LockTTL:      cfg.Search.LockTTL,
		LockWait:     cfg.Search.LockWait,
	}, searchOpts...)
	evaluator := alert.NewEvaluator(repos.alerts, repos.observations)

	h := handler.NewHandler(handler.HandlerConfig{}, handler.Services{
		Search:       searchSvc,
		Products:     repos.products,
		Observations: repos.observations,
		Trends:       trend.NewService(repos.observations),
		Alerts:       alert.NewService(repos.alerts),
		AlertChecker: evaluator,
		Deals:        deal.NewVerifier(repos.observations),
	})

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// One mux for health endpoints and API routes.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Scraper.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   httpmiddleware.SkipProbes,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("bestdeal-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	g, gctx := errgroup.WithContext(ctx)

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	if interval := cfg.Alerts.CheckInterval; interval > 0 {
		g.Go(func() error {
			lg.Info("Alert loop started", zap.Duration("interval", interval))
			return evaluator.RunLoop(zctx.Base(gctx, lg.Named("alerts")), interval)
		})
	}
	return g.Wait()
}

func newDispatcher(cfg ScraperConfig, m *app.Telemetry) (*scraper.Dispatcher, error) {
	adapters := make([]scraper.Adapter, 0, len(cfg.Stores))
	for _, name := range cfg.Stores {
		id := store.ID(name)
		if _, err := store.Lookup(id); err != nil {
			return nil, errors.Wrapf(err, "store %q", name)
		}
		a, err := scraper.NewStoreAdapter(id, scraper.StoreOptions{
			MaxResults: cfg.MaxResults,
			Timeout:    cfg.Timeout,
			UserAgent:  cfg.UserAgent,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "adapter %q", name)
		}
		adapters = append(adapters, a)
	}
	return scraper.NewDispatcher(adapters,
		scraper.WithTimeout(cfg.Timeout),
		scraper.WithTracerProvider(m.TracerProvider()),
		scraper.WithMeterProvider(m.MeterProvider()),
	)
}

func connectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.URL != "" {
		return redis.NewFromURL(ctx, cfg.URL)
	}
	return redis.New(ctx, redis.ClientConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
