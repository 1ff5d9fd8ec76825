package scraper

import (
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/bestdeal/internal/domain/store"
)

// AmazonSelectors extracts results from amazon.in search pages.
var AmazonSelectors = Selectors{
	Item: `[data-component-type="s-search-result"]`,
	Name: Fields{
		{Selector: "h2 a span"},
		{Selector: "h2 span"},
	},
	Price:         Fields{{Selector: ".a-price-whole"}},
	PriceFraction: Fields{{Selector: ".a-price-fraction"}},
	OriginalPrice: Fields{{Selector: ".a-price.a-text-price .a-offscreen"}},
	Image:         Fields{{Selector: ".s-image", Attr: "src"}},
	Link: Fields{
		{Selector: "h2 a", Attr: "href"},
		{Selector: "a.a-link-normal", Attr: "href"},
	},
}

// FlipkartSelectors extracts results from flipkart.com search pages.
var FlipkartSelectors = Selectors{
	Item: "[data-id]",
	Name: Fields{
		{Selector: "a[title]", Attr: "title"},
		{Selector: ".s1Q9rs"},
	},
	Price:         Fields{{Selector: "._30jeq3"}},
	OriginalPrice: Fields{{Selector: "._3I9_wc"}},
	Image:         Fields{{Selector: "img", Attr: "src"}},
	Link:          Fields{{Selector: "a[href]", Attr: "href"}},
	OutOfStock:    "._1dVbu9",
}

const (
	AmazonSearchURL   = "https://www.amazon.in/s?k="
	FlipkartSearchURL = "https://www.flipkart.com/search?q="
)

// StoreOptions overrides the per-store defaults of a built-in adapter.
type StoreOptions struct {
	SearchURL  string
	MaxResults int
	Timeout    time.Duration
	UserAgent  string
}

// NewStoreAdapter returns the built-in adapter for a known storefront.
func NewStoreAdapter(id store.ID, opts StoreOptions) (*HTMLAdapter, error) {
	cfg := Config{
		Store:      id,
		SearchURL:  opts.SearchURL,
		Locale:     LocaleIN,
		MaxResults: opts.MaxResults,
		Timeout:    opts.Timeout,
		UserAgent:  opts.UserAgent,
	}
	switch id {
	case store.Amazon:
		cfg.Selectors = AmazonSelectors
		if cfg.SearchURL == "" {
			cfg.SearchURL = AmazonSearchURL
		}
	case store.Flipkart:
		cfg.Selectors = FlipkartSelectors
		if cfg.SearchURL == "" {
			cfg.SearchURL = FlipkartSearchURL
		}
	default:
		return nil, errors.Wrapf(store.ErrUnknown, "no built-in adapter for %q", id)
	}
	return NewHTMLAdapter(cfg)
}
