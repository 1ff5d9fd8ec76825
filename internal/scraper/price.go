package scraper

import (
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned by ParsePrice when the text holds no digits.
var ErrNoPrice = errors.New("no price in text")

// Locale describes how a storefront formats numbers.
type Locale struct {
	Thousands rune
	Decimal   rune
}

var (
	// LocaleIN formats 1,23,456.78 (lakh grouping uses the same separator).
	LocaleIN = Locale{Thousands: ',', Decimal: '.'}
	// LocaleUS formats 123,456.78.
	LocaleUS = Locale{Thousands: ',', Decimal: '.'}
	// LocaleEU formats 123.456,78.
	LocaleEU = Locale{Thousands: '.', Decimal: ','}
)

// ParsePrice extracts a decimal amount from a storefront price label such as
// "₹12,999", "Rs. 1,299.00" or "12.999,50 €". Currency symbols and words
// around the number are ignored.
func ParsePrice(text string, loc Locale) (decimal.Decimal, error) {
	first := strings.IndexFunc(text, unicode.IsDigit)
	if first < 0 {
		return decimal.Zero, ErrNoPrice
	}
	last := strings.LastIndexFunc(text, unicode.IsDigit)
	span := text[first:]
	span = span[:last-first+1]

	var (
		b       strings.Builder
		seenDec bool
	)
	for _, r := range span {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == loc.Decimal:
			if seenDec {
				return decimal.Zero, errors.Errorf("parse price %q: repeated decimal separator", text)
			}
			seenDec = true
			b.WriteByte('.')
		case r == loc.Thousands, unicode.IsSpace(r):
		default:
			return decimal.Zero, errors.Errorf("parse price %q: unexpected %q", text, r)
		}
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse price %q", text)
	}
	return d, nil
}
