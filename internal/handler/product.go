package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/trend"
	"github.com/xenking/bestdeal/internal/wire"
)

// SearchProducts handles GET /api/search?q=.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	res, err := h.Search.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("results")
		e.ArrStart()
		for _, g := range res.Groups {
			wire.Group(e, g.ID, g.Group)
		}
		e.ArrEnd()
		e.FieldStart("source")
		e.Str(string(res.Source))
		e.ObjEnd()
	})
}

// GetProduct handles GET /api/product/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(p.ID)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("brand")
		e.Str(p.Brand)
		e.FieldStart("category")
		e.Str(p.Category)
		e.FieldStart("imageUrl")
		e.Str(p.ImageURL)
		e.FieldStart("createdAt")
		wire.Time(e, p.CreatedAt)
		e.ObjEnd()
	})
}

// LatestPrices handles GET /api/product/{id}/prices: the most recent
// observation of every store that ever listed the product.
func (h *Handler) LatestPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if _, err := h.Products.GetByID(ctx, id); err != nil {
		fail(w, r, err)
		return
	}
	latest, err := h.Observations.LatestPerStore(ctx, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(id)
		if len(latest) > 0 {
			lowest := latest[0]
			for _, o := range latest[1:] {
				if o.Price.LessThan(lowest.Price) {
					lowest = o
				}
			}
			e.FieldStart("lowestPrice")
			wire.Decimal(e, lowest.Price)
			e.FieldStart("lowestStore")
			e.Str(string(lowest.Store))
		}
		e.FieldStart("prices")
		e.ArrStart()
		for _, o := range latest {
			encodeObservation(e, o)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func encodeObservation(e *jx.Encoder, o product.Observation) {
	e.ObjStart()
	e.FieldStart("store")
	e.Str(string(o.Store))
	e.FieldStart("price")
	wire.Decimal(e, o.Price)
	e.FieldStart("originalPrice")
	wire.DecimalPtr(e, o.OriginalPrice)
	e.FieldStart("discount")
	if o.DiscountPercent != nil {
		e.Int(*o.DiscountPercent)
	} else {
		e.Null()
	}
	e.FieldStart("currency")
	e.Str(o.Currency)
	e.FieldStart("inStock")
	e.Bool(o.InStock)
	e.FieldStart("url")
	e.Str(o.SourceURL)
	e.FieldStart("observedAt")
	wire.Time(e, o.ObservedAt)
	e.ObjEnd()
}

// PriceHistory handles GET /api/product/{id}/history?store=&days=.
func (h *Handler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	st, err := storeParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	days, err := h.daysParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	id := r.PathValue("id")
	points, err := h.Trends.History(r.Context(), id, st, days)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(id)
		e.FieldStart("days")
		e.Int(trend.WindowDays(days))
		e.FieldStart("history")
		encodePoints(e, points)
		e.ObjEnd()
	})
}

func encodePoints(e *jx.Encoder, points []trend.Point) {
	e.ArrStart()
	for _, p := range points {
		e.ObjStart()
		e.FieldStart("price")
		wire.Decimal(e, p.Price)
		e.FieldStart("store")
		e.Str(string(p.Store))
		e.FieldStart("timestamp")
		wire.Time(e, p.ObservedAt)
		e.ObjEnd()
	}
	e.ArrEnd()
}

// PriceTrend handles GET /api/product/{id}/trend?store=&days=. A product
// without observations in the window yields 404 "insufficient data".
func (h *Handler) PriceTrend(w http.ResponseWriter, r *http.Request) {
	st, err := storeParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	days, err := h.daysParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	t, err := h.Trends.Get(r.Context(), r.PathValue("id"), st, days)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(t.ProductID)
		e.FieldStart("days")
		e.Int(trend.WindowDays(days))
		e.FieldStart("lowest")
		wire.Decimal(e, t.Lowest)
		e.FieldStart("highest")
		wire.Decimal(e, t.Highest)
		e.FieldStart("average")
		wire.Decimal(e, t.Average)
		e.FieldStart("current")
		wire.Decimal(e, t.Current)
		e.FieldStart("changePercent")
		e.Int(t.ChangePercent)
		e.FieldStart("changeAmount")
		wire.Decimal(e, t.ChangeAmount)
		e.FieldStart("history")
		encodePoints(e, t.History)
		e.ObjEnd()
	})
}
