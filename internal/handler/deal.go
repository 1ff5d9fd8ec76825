package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/bestdeal/internal/domain/deal"
	"github.com/xenking/bestdeal/internal/domain/store"
	"github.com/xenking/bestdeal/internal/wire"
)

// VerifyDeal handles POST /api/deals/verify with
// {"productId","store","dealPrice","originalPrice","days"?}.
func (h *Handler) VerifyDeal(w http.ResponseWriter, r *http.Request) {
	var (
		c    deal.Claim
		days = h.windowDays
	)
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			c.ProductID, err = d.Str()
		case "store":
			var s string
			s, err = d.Str()
			c.Store = store.ID(s)
		case "dealPrice":
			c.DealPrice, err = wire.ReadDecimal(d)
		case "originalPrice":
			c.ClaimedOriginalPrice, err = wire.ReadDecimal(d)
		case "days":
			days, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if c.Store != "" {
		if _, err := store.Lookup(c.Store); err != nil {
			fail(w, r, badRequestf("unknown store %q", c.Store))
			return
		}
	}
	if days <= 0 {
		fail(w, r, badRequestf("days must be a positive integer"))
		return
	}

	v, err := h.Deals.Verify(r.Context(), c, days)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(v.ProductID)
		e.FieldStart("store")
		e.Str(string(v.Store))
		e.FieldStart("dealPrice")
		wire.Decimal(e, v.DealPrice)
		e.FieldStart("claimedOriginalPrice")
		wire.Decimal(e, v.ClaimedOriginalPrice)
		e.FieldStart("priceBeforeDeal")
		wire.Decimal(e, v.PriceBeforeDeal)
		e.FieldStart("claimedDiscount")
		e.Int(v.ClaimedDiscount)
		e.FieldStart("actualDiscount")
		e.Int(v.ActualDiscount)
		e.FieldStart("isGenuine")
		e.Bool(v.Genuine)
		e.FieldStart("analysis")
		e.Str(v.Analysis)
		e.FieldStart("days")
		e.Int(v.WindowDays)
		e.FieldStart("observations")
		e.Int(v.Observations)
		e.ObjEnd()
	})
}
