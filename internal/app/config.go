package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Config holds the complete application configuration, loadable from
// environment variables (BESTDEAL_ prefix), flags, or YAML config files.
// An empty DatabaseURL runs the server on the in-memory store.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (BESTDEAL_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Search      SearchConfig
	Scraper     ScraperConfig
	Redis       RedisConfig
	Archive     ArchiveConfig
	Alerts      AlertsConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// SearchConfig controls the search policy.
type SearchConfig struct {
	PreferStored bool          `default:"true" usage:"Answer from stored products when any match" flag:"prefer-stored"`
	PersistLimit int           `default:"5" usage:"Groups of a scrape stored as products"`
	LockTTL      time.Duration `default:"30s" usage:"Lifetime of the per-query scrape lock"`
	LockWait     time.Duration `default:"3s" usage:"How long to wait for another scrape of the same query"`
}

// ScraperConfig controls the store adapters.
type ScraperConfig struct {
	Stores     []string      `default:"amazon,flipkart" usage:"Storefronts to search"`
	Timeout    time.Duration `default:"10s" usage:"Per-store request timeout"`
	MaxResults int           `default:"10" usage:"Listings taken from each store"`
	UserAgent  string        `usage:"User-Agent sent to storefronts" flag:"user-agent"`
}

// RedisConfig enables the search cache and scrape lock when Addr or URL is set.
type RedisConfig struct {
	Addr     string        `usage:"Redis address (host:port)"`
	URL      string        `usage:"Redis URL (BESTDEAL_REDIS_URL or REDIS_URL)"`
	Password string        `usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database"`
	TTL      time.Duration `default:"15m" usage:"Search cache TTL"`
}

// Enabled reports whether a Redis server is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" || c.URL != "" }

// ArchiveConfig enables raw snapshot uploads when Bucket is set.
type ArchiveConfig struct {
	Bucket    string `usage:"S3 bucket for raw scrape snapshots"`
	Region    string `default:"us-east-1" usage:"S3 region"`
	Endpoint  string `usage:"S3-compatible endpoint (MinIO, R2)"`
	AccessKey string `usage:"Static access key; default credential chain when empty"`
	SecretKey string `usage:"Static secret key"`
	PathStyle bool   `default:"false" usage:"Use path-style bucket addressing" flag:"archive-path-style"`
}

// AlertsConfig controls the in-process alert check loop.
type AlertsConfig struct {
	CheckInterval time.Duration `default:"15m" usage:"Alert check interval; 0 disables the loop" flag:"alert-check-interval"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from a .env file, environment variables,
// YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BESTDEAL",
		Files:     []string{"config.yaml", "/etc/bestdeal/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch {
	case len(c.Scraper.Stores) == 0:
		return errors.New("at least one scraper store is required")
	case c.Search.PersistLimit < 0:
		return errors.New("search persist limit must not be negative")
	case c.Alerts.CheckInterval < 0:
		return errors.New("alert check interval must not be negative")
	case c.Archive.AccessKey != "" && c.Archive.SecretKey == "":
		return errors.New("archive secret key is required with an access key")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL, REDIS_URL and PORT
// to the application's BESTDEAL_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
