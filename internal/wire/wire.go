// Package wire holds the JSON encodings shared by the HTTP API, the search
// cache and the snapshot archive.
package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
)

// Decimal writes d as a JSON number.
func Decimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

// DecimalPtr writes d or null.
func DecimalPtr(e *jx.Encoder, d *decimal.Decimal) {
	if d == nil {
		e.Null()
		return
	}
	Decimal(e, *d)
}

// Time writes t in RFC 3339 with nanoseconds.
func Time(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

// ReadDecimal reads a JSON number or numeric string.
func ReadDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	default:
		return decimal.Zero, errors.Errorf("expected number, got %s", d.Next())
	}
}

// ReadDecimalPtr reads a number or null.
func ReadDecimalPtr(d *jx.Decoder) (*decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := ReadDecimal(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadTime reads an RFC 3339 timestamp.
func ReadTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Offer writes one offer object.
func Offer(e *jx.Encoder, o product.Offer) {
	e.ObjStart()
	e.FieldStart("store")
	e.Str(string(o.Store))
	e.FieldStart("price")
	Decimal(e, o.Price)
	e.FieldStart("originalPrice")
	DecimalPtr(e, o.OriginalPrice)
	if pct, ok := o.Discount(); ok {
		e.FieldStart("discount")
		e.Int(pct)
	}
	e.FieldStart("url")
	e.Str(o.SourceURL)
	e.FieldStart("inStock")
	e.Bool(o.InStock)
	e.ObjEnd()
}

func readOffer(d *jx.Decoder) (product.Offer, error) {
	var o product.Offer
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "store":
			var s string
			s, err = d.Str()
			o.Store = store.ID(s)
		case "price":
			o.Price, err = ReadDecimal(d)
		case "originalPrice":
			o.OriginalPrice, err = ReadDecimalPtr(d)
		case "url":
			o.SourceURL, err = d.Str()
		case "inStock":
			o.InStock, err = d.Bool()
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "offer %q", key)
	})
	return o, err
}

// Group writes a group with its offers and lowest price. id may be empty
// for groups that were not persisted.
func Group(e *jx.Encoder, id string, g product.Group) {
	e.ObjStart()
	if id != "" {
		e.FieldStart("id")
		e.Str(id)
	}
	e.FieldStart("name")
	e.Str(g.Name)
	e.FieldStart("imageUrl")
	e.Str(g.ImageURL)
	if lowest, ok := g.Lowest(); ok {
		e.FieldStart("lowestPrice")
		Decimal(e, lowest.Price)
		e.FieldStart("lowestStore")
		e.Str(string(lowest.Store))
	}
	e.FieldStart("offers")
	e.ArrStart()
	for _, o := range g.Offers {
		Offer(e, o)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// IdentifiedGroup is a group together with the product id it was stored as.
type IdentifiedGroup struct {
	ID    string
	Group product.Group
}

// EncodeGroups encodes groups as a JSON array.
func EncodeGroups(groups []IdentifiedGroup) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, g := range groups {
		Group(&e, g.ID, g.Group)
	}
	e.ArrEnd()
	return e.Bytes()
}

// DecodeGroups decodes the output of EncodeGroups.
func DecodeGroups(data []byte) ([]IdentifiedGroup, error) {
	var out []IdentifiedGroup
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var g IdentifiedGroup
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				g.ID, err = d.Str()
			case "name":
				g.Group.Name, err = d.Str()
			case "imageUrl":
				g.Group.ImageURL, err = d.Str()
			case "offers":
				err = d.Arr(func(d *jx.Decoder) error {
					o, err := readOffer(d)
					if err != nil {
						return err
					}
					g.Group.Offers = append(g.Group.Offers, o)
					return nil
				})
			default:
				err = d.Skip()
			}
			return errors.Wrapf(err, "group %q", key)
		})
		if err != nil {
			return err
		}
		out = append(out, g)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode groups")
	}
	return out, nil
}
