package wire

import (
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
)

// Snapshot is one raw listing captured during a search run.
type Snapshot struct {
	Query      string
	ObservedAt time.Time
	Listing    product.Listing
}

// WriteSnapshots writes one JSON object per listing, newline separated.
func WriteSnapshots(w io.Writer, query string, at time.Time, listings []product.Listing) error {
	var e jx.Encoder
	for _, l := range listings {
		e.Reset()
		e.ObjStart()
		e.FieldStart("query")
		e.Str(query)
		e.FieldStart("observedAt")
		Time(&e, at)
		e.FieldStart("store")
		e.Str(string(l.Store))
		e.FieldStart("name")
		e.Str(l.Name)
		e.FieldStart("price")
		Decimal(&e, l.Price)
		e.FieldStart("originalPrice")
		DecimalPtr(&e, l.OriginalPrice)
		e.FieldStart("imageUrl")
		e.Str(l.ImageURL)
		e.FieldStart("url")
		e.Str(l.SourceURL)
		e.FieldStart("inStock")
		e.Bool(l.InStock)
		e.ObjEnd()

		line := append(e.Bytes(), '\n')
		if _, err := w.Write(line); err != nil {
			return errors.Wrap(err, "write snapshot")
		}
	}
	return nil
}

// ReadSnapshots decodes newline separated snapshot objects from r and calls
// fn for each, stopping at the first error.
func ReadSnapshots(r io.Reader, fn func(Snapshot) error) error {
	d := jx.Decode(r, 64*1024)
	for line := 1; d.Next() != jx.Invalid; line++ {
		var s Snapshot
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "query":
				s.Query, err = d.Str()
			case "observedAt":
				s.ObservedAt, err = ReadTime(d)
			case "store":
				var v string
				v, err = d.Str()
				s.Listing.Store = store.ID(v)
			case "name":
				s.Listing.Name, err = d.Str()
			case "price":
				s.Listing.Price, err = ReadDecimal(d)
			case "originalPrice":
				s.Listing.OriginalPrice, err = ReadDecimalPtr(d)
			case "imageUrl":
				s.Listing.ImageURL, err = d.Str()
			case "url":
				s.Listing.SourceURL, err = d.Str()
			case "inStock":
				s.Listing.InStock, err = d.Bool()
			default:
				err = d.Skip()
			}
			return errors.Wrapf(err, "field %q", key)
		})
		if err != nil {
			return errors.Wrapf(err, "snapshot record %d", line)
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}
