package product

import (
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bestdeal/internal/domain/store"
)

var hundred = decimal.NewFromInt(100)

// Listing is a single search result extracted from one storefront. Listings
// are ephemeral: they live for one aggregation run and are never stored as-is.
type Listing struct {
	Name          string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	ImageURL      string
	SourceURL     string
	Store         store.ID
	InStock       bool
}

// InvalidListingError describes why an extracted listing was rejected.
type InvalidListingError struct {
	Store  store.ID
	Reason string
}

func (e *InvalidListingError) Error() string {
	return "invalid " + string(e.Store) + " listing: " + e.Reason
}

// Validate checks the invariants every adapter must guarantee before a
// listing leaves it.
func (l Listing) Validate() error {
	switch {
	case l.Store == "":
		return &InvalidListingError{Reason: "missing store"}
	case strings.TrimSpace(l.Name) == "":
		return &InvalidListingError{Store: l.Store, Reason: "empty name"}
	case !l.Price.IsPositive():
		return &InvalidListingError{Store: l.Store, Reason: "non-positive price"}
	case l.OriginalPrice != nil && !l.OriginalPrice.IsPositive():
		return &InvalidListingError{Store: l.Store, Reason: "non-positive original price"}
	}
	u, err := url.Parse(l.SourceURL)
	if err != nil || !u.IsAbs() {
		return &InvalidListingError{Store: l.Store, Reason: "source url is not absolute"}
	}
	return nil
}

// Offer returns the per-store price data carried into a group.
func (l Listing) Offer() Offer {
	return Offer{
		Store:         l.Store,
		Price:         l.Price,
		OriginalPrice: l.OriginalPrice,
		SourceURL:     l.SourceURL,
		InStock:       l.InStock,
	}
}

// Offer is one store's price and availability inside a group.
type Offer struct {
	Store         store.ID
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	SourceURL     string
	InStock       bool
}

// Discount returns the advertised discount percentage of the offer.
func (o Offer) Discount() (int, bool) {
	if o.OriginalPrice == nil {
		return 0, false
	}
	return DiscountPercent(o.Price, *o.OriginalPrice)
}

// DiscountPercent returns round((original-price)/original*100). It reports
// false when the original price is not a usable reference.
func DiscountPercent(price, original decimal.Decimal) (int, bool) {
	if !original.IsPositive() {
		return 0, false
	}
	pct := original.Sub(price).Div(original).Mul(hundred).Round(0)
	return int(pct.IntPart()), true
}

// ErrEmptyQuery is returned when a search is attempted without a query.
var ErrEmptyQuery = errors.New("query is required")
