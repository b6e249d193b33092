package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/vendora/internal/domain/order"
	"github.com/xenking/vendora/internal/domain/pricing"
)

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var (
		cartID         string
		billing        pricing.Address
		shipping       pricing.Address
		paymentMethod  string
		shippingMethod string
	)
	if err := decodeObj(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "cart_id":
			v, err := d.Str()
			cartID = v
			return err
		case "billing_address":
			return decodeAddress(d, &billing)
		case "shipping_address":
			return decodeAddress(d, &shipping)
		case "payment_method":
			v, err := d.Str()
			paymentMethod = v
			return err
		case "shipping_method":
			v, err := d.Str()
			shippingMethod = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		respondError(w, r, err)
		return
	}
	if cartID == "" {
		respondBadRequest(w, r, "cart_id is required")
		return
	}

	o, events, err := h.processor.CreateFromCart(r.Context(), cartID, billing, shipping, paymentMethod, shippingMethod)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.publish(r, events)
	respond(w, r, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	var (
		method  string
		details = map[string]string{}
	)
	if err := decodeObj(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "method":
			v, err := d.Str()
			method = v
			return err
		case "details":
			return d.Obj(func(d *jx.Decoder, k string) error {
				v, err := d.Str()
				details[k] = v
				return err
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		respondError(w, r, err)
		return
	}

	o, events, err := h.processor.ProcessPayment(r.Context(), r.PathValue("id"), method, details)
	// A declined payment still produced events worth publishing.
	h.publish(r, events)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) shipOrder(w http.ResponseWriter, r *http.Request) {
	var tracking string
	if err := decodeObj(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "tracking_number":
			v, err := d.Str()
			tracking = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		respondError(w, r, err)
		return
	}

	o, events, err := h.processor.Ship(r.Context(), r.PathValue("id"), tracking)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.publish(r, events)
	respond(w, r, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	o, events, err := h.processor.Deliver(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.publish(r, events)
	respond(w, r, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var reason string
	if err := decodeObj(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "reason":
			v, err := d.Str()
			reason = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		respondError(w, r, err)
		return
	}

	o, events, err := h.processor.Cancel(r.Context(), r.PathValue("id"), reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.publish(r, events)
	respond(w, r, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// publish delivers events best effort: a broker failure is logged and never
// fails the request.
func (h *Handler) publish(r *http.Request, events []order.Event) {
	for _, ev := range events {
		if err := h.notifier.PublishOrderEvent(r.Context(), ev); err != nil {
			zctx.From(r.Context()).Warn("Publish order event",
				zap.String("kind", string(ev.Kind)),
				zap.String("order_id", ev.OrderID),
				zap.Error(err),
			)
		}
	}
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("number")
	e.Str(o.Number)
	e.FieldStart("customer_ref")
	e.Str(o.CustomerRef)
	e.FieldStart("currency")
	e.Str(o.Currency)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("payment_status")
	e.Str(string(o.PaymentStatus))
	e.FieldStart("fulfillment_status")
	e.Str(string(o.FulfillmentStatus))
	if o.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(o.CouponCode)
	}

	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(item.ID)
		e.FieldStart("product_id")
		e.Str(item.ProductID)
		e.FieldStart("vendor_id")
		e.Str(item.VendorID)
		e.FieldStart("product_name")
		e.Str(item.ProductName)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("unit_price")
		encodeMoney(e, item.UnitPrice)
		e.FieldStart("total_price")
		encodeMoney(e, item.TotalPrice)
		if item.TrackingNumber != "" {
			e.FieldStart("tracking_number")
			e.Str(item.TrackingNumber)
		}
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("subtotal")
	encodeMoney(e, o.Subtotal)
	e.FieldStart("tax")
	encodeMoney(e, o.Tax)
	e.FieldStart("shipping")
	encodeMoney(e, o.Shipping)
	e.FieldStart("discount")
	encodeMoney(e, o.Discount)
	e.FieldStart("total")
	encodeMoney(e, o.Total)
	e.ObjEnd()
}
