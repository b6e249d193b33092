//go:build integration

package integration

import (
	"net/http"
	"testing"
)

// buildCart creates a cart with two lamps and one mug for the given owner.
func buildCart(t *testing.T, ownerRef string) cartResponse {
	t.Helper()

	resp := doPost(t, "/api/carts", map[string]any{"owner_ref": ownerRef})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create cart: expected 201, got %d", resp.StatusCode)
	}
	c := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	resp = doPost(t, "/api/carts/"+c.ID+"/items", map[string]any{
		"product_id": "prod-acme-desk-lamp",
		"quantity":   2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add lamp: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doPost(t, "/api/carts/"+c.ID+"/items", map[string]any{
		"product_id": "prod-globe-ceramic-mug",
		"quantity":   1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add mug: expected 200, got %d", resp.StatusCode)
	}
	c = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	return c
}

func checkout(t *testing.T, cartID string) orderResponse {
	t.Helper()

	resp := doPost(t, "/api/orders", map[string]any{
		"cart_id":          cartID,
		"billing_address":  testAddress,
		"shipping_address": testAddress,
		"payment_method":   "card",
		"shipping_method":  "standard",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d", resp.StatusCode)
	}
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	return o
}

func TestCartTotals_WithCoupon(t *testing.T) {
	c := buildCart(t, "totals-customer")

	resp := doPost(t, "/api/carts/"+c.ID+"/coupon", map[string]any{"code": "WELCOME10"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("apply coupon: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doPost(t, "/api/carts/"+c.ID+"/totals", map[string]any{
		"shipping_address": testAddress,
		"shipping_method":  "standard",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("totals: expected 200, got %d", resp.StatusCode)
	}

	// 2 x 49.90 + 24.50 = 124.30, 10% off, 8.5% tax, standard shipping.
	totals := decodeJSON[totalsResponse](t, resp)
	if totals.Subtotal != "124.3000" {
		t.Errorf("subtotal: got %s, want 124.3000", totals.Subtotal)
	}
	if totals.Discount != "12.4300" {
		t.Errorf("discount: got %s, want 12.4300", totals.Discount)
	}
	if totals.Shipping != "5.9900" {
		t.Errorf("shipping: got %s, want 5.9900", totals.Shipping)
	}
	if totals.Tax != "10.5655" {
		t.Errorf("tax: got %s, want 10.5655", totals.Tax)
	}
	if totals.Total != "128.4255" {
		t.Errorf("total: got %s, want 128.4255", totals.Total)
	}
}

func TestCheckoutFlow(t *testing.T) {
	c := buildCart(t, "flow-customer")
	o := checkout(t, c.ID)

	if o.Status != "pending" || o.PaymentStatus != "pending" {
		t.Fatalf("new order: got %s/%s, want pending/pending", o.Status, o.PaymentStatus)
	}
	if len(o.Items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(o.Items))
	}
	if o.Number == "" {
		t.Error("order number not assigned")
	}

	// The cart is consumed by checkout.
	resp := doPost(t, "/api/orders", map[string]any{
		"cart_id":          c.ID,
		"billing_address":  testAddress,
		"shipping_address": testAddress,
		"payment_method":   "card",
		"shipping_method":  "standard",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("checkout converted cart: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doPost(t, "/api/orders/"+o.ID+"/payment", map[string]any{"method": "card"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payment: expected 200, got %d", resp.StatusCode)
	}
	paid := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if paid.Status != "confirmed" || paid.PaymentStatus != "paid" {
		t.Fatalf("paid order: got %s/%s, want confirmed/paid", paid.Status, paid.PaymentStatus)
	}

	resp = doPost(t, "/api/orders/"+o.ID+"/ship", map[string]any{"tracking_number": "TRACK-123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ship: expected 200, got %d", resp.StatusCode)
	}
	shipped := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if shipped.Status != "shipped" || shipped.FulfillmentStatus != "shipped" {
		t.Fatalf("shipped order: got %s/%s", shipped.Status, shipped.FulfillmentStatus)
	}

	resp = doPost(t, "/api/orders/"+o.ID+"/deliver", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deliver: expected 200, got %d", resp.StatusCode)
	}
	delivered := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if delivered.Status != "delivered" {
		t.Fatalf("delivered order: got %s, want delivered", delivered.Status)
	}
}

func TestPaymentDeclined(t *testing.T) {
	c := buildCart(t, "declined-customer")
	o := checkout(t, c.ID)

	resp := doPost(t, "/api/orders/"+o.ID+"/payment", map[string]any{
		"method":  "card",
		"details": map[string]string{"simulate": "decline"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("declined payment: expected 402, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Message == "" {
		t.Error("error message not present")
	}

	// Payment can be retried after a decline.
	retry := doPost(t, "/api/orders/"+o.ID+"/payment", map[string]any{"method": "card"})
	defer retry.Body.Close()
	if retry.StatusCode != http.StatusOK {
		t.Fatalf("retry payment: expected 200, got %d", retry.StatusCode)
	}
}

func TestCancelOrder(t *testing.T) {
	c := buildCart(t, "cancel-customer")
	o := checkout(t, c.ID)

	resp := doPost(t, "/api/orders/"+o.ID+"/cancel", map[string]any{"reason": "changed my mind"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", resp.StatusCode)
	}
	cancelled := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if cancelled.Status != "cancelled" {
		t.Fatalf("cancelled order: got %s, want cancelled", cancelled.Status)
	}

	// Cancelling twice is rejected.
	resp = doPost(t, "/api/orders/"+o.ID+"/cancel", map[string]any{"reason": "again"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("cancel twice: expected 409, got %d", resp.StatusCode)
	}
}

func TestCartItemUpdateAndRemove(t *testing.T) {
	c := buildCart(t, "edit-customer")
	lineID := c.Lines[0].ID

	resp := doPatch(t, "/api/carts/"+c.ID+"/items/"+lineID, map[string]any{"quantity": 5})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update quantity: expected 200, got %d", resp.StatusCode)
	}
	updated := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	found := false
	for _, l := range updated.Lines {
		if l.ID == lineID {
			found = true
			if l.Quantity != 5 {
				t.Errorf("quantity: got %d, want 5", l.Quantity)
			}
		}
	}
	if !found {
		t.Fatal("updated line missing from cart")
	}

	resp = doDelete(t, "/api/carts/"+c.ID+"/items/"+lineID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove item: expected 200, got %d", resp.StatusCode)
	}
	trimmed := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if len(trimmed.Lines) != len(updated.Lines)-1 {
		t.Fatalf("lines after remove: got %d, want %d", len(trimmed.Lines), len(updated.Lines)-1)
	}
}
