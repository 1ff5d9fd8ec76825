package scraper

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
)

const (
	DefaultMaxResults = 10
	DefaultTimeout    = 10 * time.Second
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ErrInvalidConfig is returned when an adapter is constructed with a
// selector set or URL that can never produce listings.
var ErrInvalidConfig = errors.New("invalid adapter config")

// Field locates one value inside a result card. An empty Attr reads the
// element text.
type Field struct {
	Selector string
	Attr     string
}

func (f Field) read(s *goquery.Selection) string {
	sel := s
	if f.Selector != "" {
		sel = s.Find(f.Selector).First()
	}
	if sel.Length() == 0 {
		return ""
	}
	if f.Attr != "" {
		v, _ := sel.Attr(f.Attr)
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(sel.Text())
}

// Fields is an ordered list of alternatives; the first non-empty value wins.
type Fields []Field

func (fs Fields) read(s *goquery.Selection) string {
	for _, f := range fs {
		if v := f.read(s); v != "" {
			return v
		}
	}
	return ""
}

// Selectors is the declarative extraction recipe for one storefront.
type Selectors struct {
	// Item matches one result card.
	Item          string
	Name          Fields
	Price         Fields
	PriceFraction Fields
	OriginalPrice Fields
	Image         Fields
	Link          Fields
	// OutOfStock, when set, marks a card as unavailable if it matches.
	OutOfStock string
}

// Config describes an HTML search adapter.
type Config struct {
	Store store.ID
	// SearchURL is the search page URL; the escaped query is appended.
	SearchURL  string
	Selectors  Selectors
	Locale     Locale
	MaxResults int
	Timeout    time.Duration
	UserAgent  string
}

func (c *Config) setDefaults() {
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Locale == (Locale{}) {
		c.Locale = LocaleIN
	}
}

func (c Config) validate() (*url.URL, error) {
	if c.Store == "" {
		return nil, errors.Wrap(ErrInvalidConfig, "store is required")
	}
	base, err := url.Parse(c.SearchURL)
	if err != nil || !base.IsAbs() {
		return nil, errors.Wrapf(ErrInvalidConfig, "%s: search url %q is not absolute", c.Store, c.SearchURL)
	}
	s := c.Selectors
	if s.Item == "" || len(s.Name) == 0 || len(s.Price) == 0 || len(s.Link) == 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "%s: item, name, price and link selectors are required", c.Store)
	}
	return base, nil
}

// HTMLAdapter fetches a storefront search page and extracts listings with a
// selector set. All recoverable failures yield an empty result.
type HTMLAdapter struct {
	cfg    Config
	base   *url.URL
	client *resty.Client
}

// NewHTMLAdapter validates cfg and builds an adapter around a resty client.
func NewHTMLAdapter(cfg Config) (*HTMLAdapter, error) {
	cfg.setDefaults()
	base, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeaders(map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-IN,en;q=0.9",
		})

	return &HTMLAdapter{cfg: cfg, base: base, client: client}, nil
}

// Store returns the storefront this adapter searches.
func (a *HTMLAdapter) Store() store.ID { return a.cfg.Store }

// Search fetches the search page for query and returns up to MaxResults
// valid listings in page order.
func (a *HTMLAdapter) Search(ctx context.Context, query string) ([]product.Listing, error) {
	lg := zctx.From(ctx).With(zap.String("store", string(a.cfg.Store)))

	resp, err := a.client.R().
		SetContext(ctx).
		Get(a.cfg.SearchURL + url.QueryEscape(query))
	if err != nil {
		lg.Warn("Fetch search page", zap.Error(err))
		return nil, nil
	}
	if resp.IsError() {
		lg.Warn("Search page returned error status", zap.Int("status", resp.StatusCode()))
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		lg.Warn("Parse search page", zap.Error(err))
		return nil, nil
	}

	listings, dropped := a.extract(doc)
	if dropped > 0 {
		lg.Debug("Dropped invalid listings", zap.Int("count", dropped))
	}
	if len(listings) == 0 {
		lg.Warn("No listings extracted", zap.String("query", query))
	}
	return listings, nil
}

func (a *HTMLAdapter) extract(doc *goquery.Document) (out []product.Listing, dropped int) {
	doc.Find(a.cfg.Selectors.Item).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		l, err := a.card(card)
		if err == nil {
			err = l.Validate()
		}
		if err != nil {
			dropped++
			return true
		}
		out = append(out, l)
		return len(out) < a.cfg.MaxResults
	})
	return out, dropped
}

func (a *HTMLAdapter) card(card *goquery.Selection) (product.Listing, error) {
	sel := a.cfg.Selectors

	price, err := a.price(card)
	if err != nil {
		return product.Listing{}, err
	}

	l := product.Listing{
		Name:      sel.Name.read(card),
		Price:     price,
		ImageURL:  a.resolve(sel.Image.read(card)),
		SourceURL: a.resolve(sel.Link.read(card)),
		Store:     a.cfg.Store,
		InStock:   sel.OutOfStock == "" || card.Find(sel.OutOfStock).Length() == 0,
	}
	if text := sel.OriginalPrice.read(card); text != "" {
		if orig, err := ParsePrice(text, a.cfg.Locale); err == nil {
			l.OriginalPrice = &orig
		}
	}
	return l, nil
}

func (a *HTMLAdapter) price(card *goquery.Selection) (decimal.Decimal, error) {
	sel := a.cfg.Selectors
	whole := sel.Price.read(card)
	if frac := sel.PriceFraction.read(card); frac != "" && whole != "" {
		whole = strings.TrimRight(whole, string(a.cfg.Locale.Decimal)) + string(a.cfg.Locale.Decimal) + frac
	}
	return ParsePrice(whole, a.cfg.Locale)
}

func (a *HTMLAdapter) resolve(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := a.base.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}
