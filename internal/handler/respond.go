package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bestdeal/internal/domain/alert"
	"github.com/xenking/bestdeal/internal/domain/deal"
	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/store"
)

// badRequest is a client error with a message safe to return as is.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// fail maps domain errors to HTTP responses. Unknown errors are logged and
// hidden behind a 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		writeError(w, http.StatusBadRequest, br.msg)
	case errors.Is(err, product.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "query parameter q is required")
	case errors.Is(err, alert.ErrInvalidAlert),
		errors.Is(err, alert.ErrInvalidTarget),
		errors.Is(err, deal.ErrInvalidClaim):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, alert.ErrNotFound):
		writeError(w, http.StatusNotFound, "alert not found")
	case errors.Is(err, product.ErrNoObservations):
		writeError(w, http.StatusNotFound, "insufficient data")
	case errors.Is(err, alert.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// storeParam parses an optional store query parameter.
func storeParam(r *http.Request) (*store.ID, error) {
	v := r.URL.Query().Get("store")
	if v == "" {
		return nil, nil
	}
	if _, err := store.Lookup(store.ID(v)); err != nil {
		return nil, badRequestf("unknown store %q", v)
	}
	return store.Ptr(store.ID(v)), nil
}

// daysParam parses the optional days query parameter.
func (h *Handler) daysParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("days")
	if v == "" {
		return h.windowDays, nil
	}
	days, err := strconv.Atoi(v)
	if err != nil || days <= 0 {
		return 0, badRequestf("days must be a positive integer")
	}
	return days, nil
}

// decodeBody runs fn over the fields of a JSON object body.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := jx.Decode(body, 4096).Obj(fn); err != nil {
		return badRequestf("invalid request body: %v", err)
	}
	return nil
}
