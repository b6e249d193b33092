// Package handler exposes the cart and order operations over JSON HTTP.
package handler

import (
	"net/http"

	"github.com/xenking/vendora/internal/domain/cart"
	"github.com/xenking/vendora/internal/domain/order"
	"github.com/xenking/vendora/internal/notify"
)

// Handler routes HTTP requests to the cart service and the order processor.
type Handler struct {
	carts     *cart.Service
	processor *order.Processor
	orders    order.Repository
	notifier  notify.Notifier
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	carts *cart.Service,
	processor *order.Processor,
	orders order.Repository,
	notifier notify.Notifier,
) *Handler {
	return &Handler{
		carts:     carts,
		processor: processor,
		orders:    orders,
		notifier:  notifier,
	}
}

// Routes registers all API endpoints on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/carts", h.createCart)
	mux.HandleFunc("GET /api/carts/{id}", h.getCart)
	mux.HandleFunc("POST /api/carts/{id}/items", h.addCartItem)
	mux.HandleFunc("PATCH /api/carts/{id}/items/{lineID}", h.updateCartItem)
	mux.HandleFunc("DELETE /api/carts/{id}/items/{lineID}", h.removeCartItem)
	mux.HandleFunc("POST /api/carts/{id}/coupon", h.applyCoupon)
	mux.HandleFunc("POST /api/carts/{id}/totals", h.cartTotals)

	mux.HandleFunc("POST /api/orders", h.checkout)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/payment", h.payOrder)
	mux.HandleFunc("POST /api/orders/{id}/ship", h.shipOrder)
	mux.HandleFunc("POST /api/orders/{id}/deliver", h.deliverOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.cancelOrder)

	return mux
}
