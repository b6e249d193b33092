package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/vendora/internal/domain/cart"
	"github.com/xenking/vendora/internal/domain/catalog"
	"github.com/xenking/vendora/internal/domain/coupon"
	"github.com/xenking/vendora/internal/domain/money"
	"github.com/xenking/vendora/internal/domain/order"
	"github.com/xenking/vendora/internal/domain/pricing"
	"github.com/xenking/vendora/internal/domain/stock"
	"github.com/xenking/vendora/internal/notify"
)

type stubCatalog map[string]*catalog.Snapshot

func (s stubCatalog) GetProductSnapshot(_ context.Context, productID string) (*catalog.Snapshot, error) {
	snap, ok := s[productID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

type stubValidator struct{}

func (stubValidator) Validate(_ context.Context, code string, _ []coupon.Item, _ string) (*coupon.Discount, error) {
	if code != "SAVE10" {
		return nil, coupon.ErrInvalidCoupon
	}
	return &coupon.Discount{Amount: money.MustParse("10", "USD")}, nil
}

func (stubValidator) Redeem(context.Context, string, string) error { return nil }

type stubGateway struct {
	declined bool
}

func (s *stubGateway) Charge(context.Context, *order.Order, string, map[string]string) (*order.ChargeResult, error) {
	if s.declined {
		return nil, errors.New("card declined")
	}
	return &order.ChargeResult{TransactionID: "txn"}, nil
}

func (s *stubGateway) Refund(context.Context, *order.Order, money.Money) (*order.ChargeResult, error) {
	return &order.ChargeResult{TransactionID: "rfn"}, nil
}

type nopAccruer struct{}

func (nopAccruer) Accrue(context.Context, *order.Order) error { return nil }

type memCartRepo struct {
	carts map[string]*cart.Cart
}

func (r *memCartRepo) Create(_ context.Context, c *cart.Cart) error {
	c.Version = 1
	cp := *c
	cp.Lines = append([]cart.Line(nil), c.Lines...)
	r.carts[c.ID] = &cp
	return nil
}

func (r *memCartRepo) Get(_ context.Context, id string) (*cart.Cart, error) {
	c, ok := r.carts[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := *c
	cp.Lines = append([]cart.Line(nil), c.Lines...)
	return &cp, nil
}

func (r *memCartRepo) Save(_ context.Context, c *cart.Cart) error {
	stored, ok := r.carts[c.ID]
	if !ok {
		return cart.ErrNotFound
	}
	if stored.Version != c.Version {
		return cart.ErrConcurrentModification
	}
	c.Version++
	cp := *c
	cp.Lines = append([]cart.Line(nil), c.Lines...)
	r.carts[c.ID] = &cp
	return nil
}

func (r *memCartRepo) ReapExpired(context.Context, time.Time) (int, error) { return 0, nil }

type memOrderRepo struct {
	orders map[string]*order.Order
}

func (r *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	o.Version = 1
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	r.orders[o.ID] = &cp
	return nil
}

func (r *memOrderRepo) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	return &cp, nil
}

func (r *memOrderRepo) Save(_ context.Context, o *order.Order) error {
	stored, ok := r.orders[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	if stored.Version != o.Version {
		return order.ErrConcurrentModification
	}
	o.Version++
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	r.orders[o.ID] = &cp
	return nil
}

type fixedTax struct{ amount money.Money }

func (f fixedTax) ComputeTax(context.Context, []pricing.Line, pricing.Address) (money.Money, error) {
	return f.amount, nil
}

type fixedShipping struct{ amount money.Money }

func (f fixedShipping) Quote(context.Context, []pricing.Line, pricing.Address, string) (money.Money, error) {
	return f.amount, nil
}

type testEnv struct {
	mux     *http.ServeMux
	gateway *stubGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ledger := stock.NewMemoryLedger(15 * time.Minute)
	ledger.Enroll(stock.Entry{ProductID: "p1", Available: 10, TrackInventory: true})

	cat := stubCatalog{
		"p1": {
			ProductID: "p1", VendorID: "v1", Name: "Widget", SKU: "WID-1",
			Price: money.MustParse("50", "USD"), Category: "tools",
			Available: 10, TrackInventory: true,
		},
	}
	engine := pricing.NewEngine(
		fixedTax{amount: money.MustParse("5", "USD")},
		fixedShipping{amount: money.MustParse("10", "USD")},
	)

	carts := &memCartRepo{carts: make(map[string]*cart.Cart)}
	orders := &memOrderRepo{orders: make(map[string]*order.Order)}
	gateway := &stubGateway{}

	cartSvc := cart.NewService(cat, stubValidator{}, engine, carts, "USD", time.Hour)
	processor := order.NewProcessor(ledger, cat, engine, stubValidator{}, gateway, nopAccruer{}, orders, carts)

	h := NewHandler(cartSvc, processor, orders, notify.Nop{})
	return &testEnv{mux: h.Routes(), gateway: gateway}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestCartEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/carts", `{"owner_ref":"cust-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	cartID := body["id"].(string)
	require.NotEmpty(t, cartID)

	rec, body = env.do(t, http.MethodPost, "/api/carts/"+cartID+"/items",
		`{"product_id":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := body["lines"].([]any)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]any)
	assert.Equal(t, "p1", line["product_id"])
	assert.Equal(t, float64(2), line["quantity"])
	assert.Equal(t, "50.0000", line["unit_price"])

	rec, _ = env.do(t, http.MethodGet, "/api/carts/"+cartID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCartEndpoints_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/carts", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/carts/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, body := env.do(t, http.MethodPost, "/api/carts", `{"owner_ref":"cust-1"}`)
	cartID := body["id"].(string)

	// More than the 10 units in stock.
	rec, _ = env.do(t, http.MethodPost, "/api/carts/"+cartID+"/items",
		`{"product_id":"p1","quantity":99}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/carts/"+cartID+"/items",
		`{"product_id":"ghost","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/carts/"+cartID+"/coupon", `{"code":"NOPE"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCartTotals(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodPost, "/api/carts", `{"owner_ref":"cust-1"}`)
	cartID := body["id"].(string)
	env.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", `{"product_id":"p1","quantity":2}`)
	env.do(t, http.MethodPost, "/api/carts/"+cartID+"/coupon", `{"code":"SAVE10"}`)

	rec, body := env.do(t, http.MethodPost, "/api/carts/"+cartID+"/totals",
		`{"shipping_address":{"country":"US"},"shipping_method":"standard"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100.0000", body["subtotal"])
	assert.Equal(t, "10.0000", body["discount"])
	assert.Equal(t, "105.0000", body["total"]) // 100+5+10-10
}

func checkoutCart(t *testing.T, env *testEnv) string {
	t.Helper()

	_, body := env.do(t, http.MethodPost, "/api/carts", `{"owner_ref":"cust-1"}`)
	cartID := body["id"].(string)
	rec, _ := env.do(t, http.MethodPost, "/api/carts/"+cartID+"/items",
		`{"product_id":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/api/orders",
		`{"cart_id":"`+cartID+`","shipping_address":{"country":"US"},"payment_method":"card","shipping_method":"standard"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "pending", body["status"])
	return body["id"].(string)
}

func TestCheckoutAndPayment(t *testing.T) {
	env := newTestEnv(t)
	orderID := checkoutCart(t, env)

	rec, body := env.do(t, http.MethodPost, "/api/orders/"+orderID+"/payment",
		`{"method":"card"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", body["status"])
	assert.Equal(t, "paid", body["payment_status"])

	rec, body = env.do(t, http.MethodPost, "/api/orders/"+orderID+"/ship",
		`{"tracking_number":"TRACK-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shipped", body["status"])

	rec, body = env.do(t, http.MethodPost, "/api/orders/"+orderID+"/deliver", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "delivered", body["status"])
}

func TestPaymentDeclined(t *testing.T) {
	env := newTestEnv(t)
	orderID := checkoutCart(t, env)

	env.gateway.declined = true
	rec, body := env.do(t, http.MethodPost, "/api/orders/"+orderID+"/payment",
		`{"method":"card"}`)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, body["message"], "payment failed")
}

func TestCancelOrder(t *testing.T) {
	env := newTestEnv(t)
	orderID := checkoutCart(t, env)

	rec, body := env.do(t, http.MethodPost, "/api/orders/"+orderID+"/cancel",
		`{"reason":"changed my mind"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", body["status"])

	// Cancelling twice is an invalid transition.
	rec, _ = env.do(t, http.MethodPost, "/api/orders/"+orderID+"/cancel", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCheckoutConvertedCart(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodPost, "/api/carts", `{"owner_ref":"cust-1"}`)
	cartID := body["id"].(string)
	env.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", `{"product_id":"p1","quantity":1}`)

	req := `{"cart_id":"` + cartID + `","payment_method":"card","shipping_method":"standard"}`
	rec, _ := env.do(t, http.MethodPost, "/api/orders", req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/orders", req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
