package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/vendora/internal/domain/cart"
	"github.com/xenking/vendora/internal/domain/catalog"
	"github.com/xenking/vendora/internal/domain/coupon"
	"github.com/xenking/vendora/internal/domain/order"
	"github.com/xenking/vendora/internal/domain/stock"
)

// badRequestError marks malformed or incomplete request input.
type badRequestError struct {
	message string
}

func (e *badRequestError) Error() string { return e.message }

func respondBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	respondError(w, r, &badRequestError{message: message})
}

// respond writes a JSON body built by fn with the given status.
func respond(w http.ResponseWriter, r *http.Request, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(e.Bytes()); err != nil {
		zctx.From(r.Context()).Debug("Write response", zap.Error(err))
	}
}

// respondError maps a domain error to an HTTP status and a JSON error body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}

	respond(w, r, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		if status == http.StatusInternalServerError {
			// Internals stay in the logs.
			e.Str("internal error")
		} else {
			e.Str(err.Error())
		}
		e.ObjEnd()
	})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, stock.ErrUnknownProduct):
		return http.StatusNotFound
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, stock.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, cart.ErrConverted),
		errors.Is(err, cart.ErrExpired),
		errors.Is(err, cart.ErrConcurrentModification),
		errors.Is(err, order.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponUsageLimitReached):
		return http.StatusUnprocessableEntity
	}

	var (
		badRequest    *badRequestError
		lineNotFound  *cart.LineNotFoundError
		insufficient  *stock.InsufficientStockError
		notApplicable *coupon.NotApplicableError
		transition    *order.InvalidTransitionError
		paymentFailed *order.PaymentFailedError
	)
	switch {
	case errors.As(err, &badRequest):
		return http.StatusBadRequest
	case errors.As(err, &lineNotFound):
		return http.StatusNotFound
	case errors.As(err, &insufficient):
		return http.StatusConflict
	case errors.As(err, &notApplicable):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transition):
		return http.StatusConflict
	case errors.As(err, &paymentFailed):
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}
