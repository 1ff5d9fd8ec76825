// Package store enumerates the storefronts the aggregator knows about.
package store

import "github.com/go-faster/errors"

// ErrUnknown is returned when a store identifier is not registered.
var ErrUnknown = errors.New("unknown store")

// ID identifies a storefront. The set is open: adapters may register stores
// that are not listed in Known.
type ID string

// Storefronts with metadata shipped by default.
const (
	Amazon   ID = "amazon"
	Flipkart ID = "flipkart"
	Myntra   ID = "myntra"
	Ajio     ID = "ajio"
	Alibaba  ID = "alibaba"
)

// Info describes a storefront for presentation purposes.
type Info struct {
	ID          ID
	DisplayName string
	URL         string
	Currency    string
}

// Known lists the storefront metadata in display order.
var Known = []Info{
	{ID: Amazon, DisplayName: "Amazon", URL: "https://www.amazon.in", Currency: "INR"},
	{ID: Flipkart, DisplayName: "Flipkart", URL: "https://www.flipkart.com", Currency: "INR"},
	{ID: Myntra, DisplayName: "Myntra", URL: "https://www.myntra.com", Currency: "INR"},
	{ID: Ajio, DisplayName: "AJIO", URL: "https://www.ajio.com", Currency: "INR"},
	{ID: Alibaba, DisplayName: "Alibaba", URL: "https://www.alibaba.com", Currency: "USD"},
}

// Lookup returns metadata for a known store.
func Lookup(id ID) (Info, error) {
	for _, info := range Known {
		if info.ID == id {
			return info, nil
		}
	}
	return Info{}, errors.Wrapf(ErrUnknown, "store %q", id)
}

// CurrencyOf returns the pricing currency for a store, defaulting to INR for
// stores without metadata.
func CurrencyOf(id ID) string {
	if info, err := Lookup(id); err == nil {
		return info.Currency
	}
	return "INR"
}

// Ptr returns a pointer to id, or nil when id is empty. It is used for the
// optional store filters of history and alert queries.
func Ptr(id ID) *ID {
	if id == "" {
		return nil
	}
	return &id
}
