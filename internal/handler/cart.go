package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/vendora/internal/domain/cart"
	"github.com/xenking/vendora/internal/domain/money"
	"github.com/xenking/vendora/internal/domain/pricing"
)

func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) {
	var ownerRef string
	if err := decodeObj(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "owner_ref":
			v, err := d.Str()
			ownerRef = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		respondError(w, r, err)
		return
	}
	if ownerRef == "" {
		respondBadRequest(w, r, "owner_ref is required")
		return
	}

	c, err := h.carts.Create(r.Context(), ownerRef)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, func(e *jx.Encoder) { encodeCart(e, c) })
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		productID string
		qty       int
	)
	if err := decodeObj(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Str()
			productID = v
			return err
		case "quantity":
			v, err := d.Int()
			qty = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		respondError(w, r, err)
		return
	}
	if productID == "" {
		respondBadRequest(w, r, "product_id is required")
		return
	}

	c, err := h.carts.AddItem(r.Context(), r.PathValue("id"), productID, qty)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var qty int
	if err := decodeObj(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "quantity":
			v, err := d.Int()
			qty = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		respondError(w, r, err)
		return
	}

	c, err := h.carts.UpdateItemQuantity(r.Context(), r.PathValue("id"), r.PathValue("lineID"), qty)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), r.PathValue("id"), r.PathValue("lineID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var code string
	if err := decodeObj(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			code = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		respondError(w, r, err)
		return
	}
	if code == "" {
		respondBadRequest(w, r, "code is required")
		return
	}

	c, err := h.carts.ApplyCoupon(r.Context(), r.PathValue("id"), code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

func (h *Handler) cartTotals(w http.ResponseWriter, r *http.Request) {
	var (
		dest   pricing.Address
		method string
	)
	if err := decodeObj(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "shipping_address":
			return decodeAddress(d, &dest)
		case "shipping_method":
			v, err := d.Str()
			method = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		respondError(w, r, err)
		return
	}

	totals, err := h.carts.ComputeTotals(r.Context(), r.PathValue("id"), dest, method)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, func(e *jx.Encoder) { encodeTotals(e, totals) })
}

// decodeObj reads the request body and decodes a single JSON object through
// the per-field callback.
func decodeObj(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	d := jx.DecodeBytes(body)
	if err := d.Obj(field); err != nil {
		return &badRequestError{message: "malformed JSON body"}
	}
	return nil
}

func decodeAddress(d *jx.Decoder, a *pricing.Address) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var (
			v   string
			err error
		)
		switch key {
		case "line1":
			v, err = d.Str()
			a.Line1 = v
		case "line2":
			v, err = d.Str()
			a.Line2 = v
		case "city":
			v, err = d.Str()
			a.City = v
		case "region":
			v, err = d.Str()
			a.Region = v
		case "postal_code":
			v, err = d.Str()
			a.PostalCode = v
		case "country":
			v, err = d.Str()
			a.Country = v
		default:
			return d.Skip()
		}
		return err
	})
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("owner_ref")
	e.Str(c.OwnerRef)
	e.FieldStart("currency")
	e.Str(c.Currency)
	e.FieldStart("status")
	e.Str(string(c.Status))
	if c.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(c.CouponCode)
	}
	e.FieldStart("lines")
	e.ArrStart()
	for _, line := range c.Lines {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(line.ID)
		e.FieldStart("product_id")
		e.Str(line.ProductID)
		e.FieldStart("vendor_id")
		e.Str(line.VendorID)
		e.FieldStart("product_name")
		e.Str(line.ProductName)
		e.FieldStart("quantity")
		e.Int(line.Quantity)
		e.FieldStart("unit_price")
		encodeMoney(e, line.UnitPrice)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeTotals(e *jx.Encoder, t pricing.Totals) {
	e.ObjStart()
	e.FieldStart("subtotal")
	encodeMoney(e, t.Subtotal)
	e.FieldStart("tax")
	encodeMoney(e, t.Tax)
	e.FieldStart("shipping")
	encodeMoney(e, t.Shipping)
	e.FieldStart("discount")
	encodeMoney(e, t.Discount)
	e.FieldStart("total")
	encodeMoney(e, t.Total)
	e.ObjEnd()
}

// encodeMoney writes an amount as a fixed-point decimal string to avoid
// binary-float drift on the wire.
func encodeMoney(e *jx.Encoder, m money.Money) {
	e.Str(m.Amount().StringFixed(money.Scale))
}
