package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/bestdeal")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://u:p@db:5432/bestdeal", cfg.DatabaseURL)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.True(t, cfg.Redis.Enabled())
}

func TestApplyPlatformDefaults_ExplicitWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit"}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://explicit", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Scraper: ScraperConfig{Stores: []string{"amazon"}, Timeout: 10 * time.Second},
			Search:  SearchConfig{PersistLimit: 5},
			Alerts:  AlertsConfig{CheckInterval: time.Minute},
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no stores", func(c *Config) { c.Scraper.Stores = nil }},
		{"negative persist limit", func(c *Config) { c.Search.PersistLimit = -1 }},
		{"negative interval", func(c *Config) { c.Alerts.CheckInterval = -time.Second }},
		{"access key without secret", func(c *Config) { c.Archive.AccessKey = "AKIA" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewDispatcher(t *testing.T) {
	_, err := newDispatcher(ScraperConfig{Stores: []string{"amazon", "ebay"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ebay")
}
