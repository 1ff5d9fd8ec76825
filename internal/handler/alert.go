package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/bestdeal/internal/domain/alert"
	"github.com/xenking/bestdeal/internal/domain/store"
	"github.com/xenking/bestdeal/internal/wire"
)

// CreateAlert handles POST /api/alerts with
// {"userId","productId","targetPrice","store"?}.
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var n alert.NewAlert
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			n.UserID, err = d.Str()
		case "productId":
			n.ProductID, err = d.Str()
		case "targetPrice":
			n.TargetPrice, err = wire.ReadDecimal(d)
		case "store":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var s string
			s, err = d.Str()
			n.Store = store.Ptr(store.ID(s))
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if n.Store != nil {
		if _, err := store.Lookup(*n.Store); err != nil {
			fail(w, r, badRequestf("unknown store %q", *n.Store))
			return
		}
	}

	ctx := r.Context()
	if n.ProductID != "" {
		if _, err := h.Products.GetByID(ctx, n.ProductID); err != nil {
			fail(w, r, err)
			return
		}
	}
	a, err := h.Alerts.Create(ctx, n)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeAlert(e, *a) })
}

// ListAlerts handles GET /api/alerts?user=.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		fail(w, r, badRequestf("query parameter user is required"))
		return
	}
	alerts, err := h.Alerts.List(r.Context(), user)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("alerts")
		e.ArrStart()
		for _, a := range alerts {
			encodeAlert(e, a)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

// CheckAlerts handles POST /api/alerts/check, the hook for external
// schedulers.
func (h *Handler) CheckAlerts(w http.ResponseWriter, r *http.Request) {
	res, err := h.AlertChecker.Run(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("checked")
		e.Int(res.Checked)
		e.FieldStart("triggered")
		e.Int(res.Triggered)
		e.ObjEnd()
	})
}

// PauseAlert handles POST /api/alerts/{id}/pause.
func (h *Handler) PauseAlert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Alerts.Pause)
}

// ResumeAlert handles POST /api/alerts/{id}/resume.
func (h *Handler) ResumeAlert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Alerts.Resume)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*alert.Alert, error)) {
	a, err := fn(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeAlert(e, *a) })
}

func encodeAlert(e *jx.Encoder, a alert.Alert) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(a.ID)
	e.FieldStart("userId")
	e.Str(a.UserID)
	e.FieldStart("productId")
	e.Str(a.ProductID)
	e.FieldStart("targetPrice")
	wire.Decimal(e, a.TargetPrice)
	e.FieldStart("store")
	if a.Store != nil {
		e.Str(string(*a.Store))
	} else {
		e.Null()
	}
	e.FieldStart("state")
	e.Str(string(a.State()))
	e.FieldStart("isActive")
	e.Bool(a.IsActive)
	e.FieldStart("triggeredAt")
	if a.TriggeredAt != nil {
		wire.Time(e, *a.TriggeredAt)
	} else {
		e.Null()
	}
	e.FieldStart("createdAt")
	wire.Time(e, a.CreatedAt)
	e.ObjEnd()
}
