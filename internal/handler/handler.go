// Package handler exposes the search, price, trend, alert and deal services
// over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/bestdeal/internal/domain/alert"
	"github.com/xenking/bestdeal/internal/domain/deal"
	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/search"
	"github.com/xenking/bestdeal/internal/domain/store"
	"github.com/xenking/bestdeal/internal/domain/trend"
)

// Searcher runs product searches.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Result, error)
}

// TrendService summarises price history.
type TrendService interface {
	Get(ctx context.Context, productID string, st *store.ID, windowDays int) (*trend.Trend, error)
	History(ctx context.Context, productID string, st *store.ID, windowDays int) ([]trend.Point, error)
}

// AlertService manages user alerts.
type AlertService interface {
	Create(ctx context.Context, n alert.NewAlert) (*alert.Alert, error)
	List(ctx context.Context, userID string) ([]alert.Alert, error)
	Pause(ctx context.Context, id string) (*alert.Alert, error)
	Resume(ctx context.Context, id string) (*alert.Alert, error)
}

// AlertChecker evaluates all active alerts.
type AlertChecker interface {
	Run(ctx context.Context) (alert.Result, error)
}

// DealVerifier checks advertised discounts.
type DealVerifier interface {
	Verify(ctx context.Context, c deal.Claim, windowDays int) (*deal.Verdict, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// DefaultWindowDays applies when a request has no days parameter.
	DefaultWindowDays int
	// MaxBodyBytes limits JSON request bodies.
	MaxBodyBytes int64
}

// Services are the collaborators of Handler.
type Services struct {
	Search       Searcher
	Products     product.Repository
	Observations product.ObservationRepository
	Trends       TrendService
	Alerts       AlertService
	AlertChecker AlertChecker
	Deals        DealVerifier
}

// Handler serves the JSON API.
type Handler struct {
	Services
	windowDays int
	maxBody    int64
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig, svc Services) *Handler {
	if cfg.DefaultWindowDays <= 0 {
		cfg.DefaultWindowDays = trend.DefaultWindowDays
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	return &Handler{
		Services:   svc,
		windowDays: cfg.DefaultWindowDays,
		maxBody:    cfg.MaxBodyBytes,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", h.SearchProducts)
	mux.HandleFunc("GET /api/product/{id}", h.GetProduct)
	mux.HandleFunc("GET /api/product/{id}/prices", h.LatestPrices)
	mux.HandleFunc("GET /api/product/{id}/history", h.PriceHistory)
	mux.HandleFunc("GET /api/product/{id}/trend", h.PriceTrend)
	mux.HandleFunc("POST /api/alerts", h.CreateAlert)
	mux.HandleFunc("GET /api/alerts", h.ListAlerts)
	mux.HandleFunc("POST /api/alerts/check", h.CheckAlerts)
	mux.HandleFunc("POST /api/alerts/{id}/pause", h.PauseAlert)
	mux.HandleFunc("POST /api/alerts/{id}/resume", h.ResumeAlert)
	mux.HandleFunc("POST /api/deals/verify", h.VerifyDeal)
}
