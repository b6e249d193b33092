package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/vendora/internal/domain/catalog"
	"github.com/xenking/vendora/internal/domain/coupon"
	"github.com/xenking/vendora/internal/domain/money"
	"github.com/xenking/vendora/internal/domain/pricing"
	"github.com/xenking/vendora/internal/domain/stock"
)

// --- Mocks ---

type mockCatalog struct {
	snapshots map[string]*catalog.Snapshot
}

func (m *mockCatalog) GetProductSnapshot(_ context.Context, id string) (*catalog.Snapshot, error) {
	s, ok := m.snapshots[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return s, nil
}

type mockValidator struct {
	discount *coupon.Discount
	err      error
	calls    int
}

func (m *mockValidator) Validate(_ context.Context, _ string, _ []coupon.Item, _ string) (*coupon.Discount, error) {
	m.calls++
	return m.discount, m.err
}

func (m *mockValidator) Redeem(_ context.Context, _, _ string) error { return nil }

type mockCartRepo struct {
	carts map[string]*Cart
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*Cart)}
}

func (m *mockCartRepo) Create(_ context.Context, c *Cart) error {
	cp := *c
	m.carts[c.ID] = &cp
	return nil
}

func (m *mockCartRepo) Get(_ context.Context, id string) (*Cart, error) {
	c, ok := m.carts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Lines = append([]Line(nil), c.Lines...)
	return &cp, nil
}

func (m *mockCartRepo) Save(_ context.Context, c *Cart) error {
	stored, ok := m.carts[c.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != c.Version {
		return ErrConcurrentModification
	}
	cp := *c
	cp.Version++
	cp.Lines = append([]Line(nil), c.Lines...)
	m.carts[c.ID] = &cp
	return nil
}

func (m *mockCartRepo) ReapExpired(_ context.Context, now time.Time) (int, error) {
	n := 0
	for _, c := range m.carts {
		if c.Status == StatusActive && !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt) {
			c.Status = StatusAbandoned
			n++
		}
	}
	return n, nil
}

// --- Helpers ---

type zeroQuoter struct{}

func (zeroQuoter) ComputeTax(_ context.Context, _ []pricing.Line, _ pricing.Address) (money.Money, error) {
	return money.Zero("EGP"), nil
}

func (zeroQuoter) Quote(_ context.Context, _ []pricing.Line, _ pricing.Address, _ string) (money.Money, error) {
	return money.Zero("EGP"), nil
}

func testSnapshot(id, vendor string, price string, available int) *catalog.Snapshot {
	return &catalog.Snapshot{
		ProductID:      id,
		VendorID:       vendor,
		Name:           "Product " + id,
		SKU:            "SKU-" + id,
		Price:          money.MustParse(price, "EGP"),
		Category:       "general",
		Available:      available,
		TrackInventory: true,
	}
}

func newTestService(cat *mockCatalog, v *mockValidator, repo *mockCartRepo) *Service {
	return NewService(cat, v, pricing.NewEngine(zeroQuoter{}, zeroQuoter{}), repo, "EGP", time.Hour)
}

// --- Tests ---

func TestAddItem(t *testing.T) {
	cat := &mockCatalog{snapshots: map[string]*catalog.Snapshot{
		"p1": testSnapshot("p1", "v1", "50.00", 5),
	}}
	repo := newMockCartRepo()
	svc := newTestService(cat, &mockValidator{}, repo)
	ctx := context.Background()

	c, err := svc.Create(ctx, "cust-1")
	require.NoError(t, err)

	c, err = svc.AddItem(ctx, c.ID, "p1", 2)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 2, c.Lines[0].Quantity)
	assert.Equal(t, "v1", c.Lines[0].VendorID)
	assert.Equal(t, "SKU-p1", c.Lines[0].ProductSKU)

	sub, err := c.Subtotal()
	require.NoError(t, err)
	assert.True(t, money.MustParse("100.00", "EGP").Equal(sub))
}

func TestAddItem_MergesQuantities(t *testing.T) {
	cat := &mockCatalog{snapshots: map[string]*catalog.Snapshot{
		"p1": testSnapshot("p1", "v1", "50.00", 5),
	}}
	repo := newMockCartRepo()
	svc := newTestService(cat, &mockValidator{}, repo)
	ctx := context.Background()

	c, err := svc.Create(ctx, "cust-1")
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, c.ID, "p1", 2)
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, "p1", 3)
	require.NoError(t, err)

	require.Len(t, c.Lines, 1, "same product must merge, not duplicate")
	assert.Equal(t, 5, c.Lines[0].Quantity)
}

func TestAddItem_MergedQuantityExceedsStock(t *testing.T) {
	cat := &mockCatalog{snapshots: map[string]*catalog.Snapshot{
		"p1": testSnapshot("p1", "v1", "50.00", 4),
	}}
	repo := newMockCartRepo()
	svc := newTestService(cat, &mockValidator{}, repo)
	ctx := context.Background()

	c, err := svc.Create(ctx, "cust-1")
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, c.ID, "p1", 3)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, c.ID, "p1", 2)
	var isErr *stock.InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, "p1", isErr.ProductID)
	assert.Equal(t, 5, isErr.Requested)

	// The failed add must not change the stored cart.
	stored, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Lines[0].Quantity)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	svc := newTestService(&mockCatalog{snapshots: map[string]*catalog.Snapshot{}}, &mockValidator{}, newMockCartRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, "cust-1")
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, c.ID, "ghost", 1)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestUpdateItemQuantity(t *testing.T) {
	cat := &mockCatalog{snapshots: map[string]*catalog.Snapshot{
		"p1": testSnapshot("p1", "v1", "50.00", 10),
	}}
	svc := newTestService(cat, &mockValidator{}, newMockCartRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, "cust-1")
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, "p1", 2)
	require.NoError(t, err)
	lineID := c.Lines[0].ID

	c, err = svc.UpdateItemQuantity(ctx, c.ID, lineID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Lines[0].Quantity)

	// Zero quantity removes the line.
	c, err = svc.UpdateItemQuantity(ctx, c.ID, lineID, 0)
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
}

func TestUpdateItemQuantity_LineNotFound(t *testing.T) {
	svc := newTestService(&mockCatalog{}, &mockValidator{}, newMockCartRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, "cust-1")
	require.NoError(t, err)

	_, err = svc.UpdateItemQuantity(ctx, c.ID, "ghost-line", 1)
	var lnfErr *LineNotFoundError
	require.ErrorAs(t, err, &lnfErr)
}

func TestRemoveItem(t *testing.T) {
	cat := &mockCatalog{snapshots: map[string]*catalog.Snapshot{
		"p1": testSnapshot("p1", "v1", "50.00", 10),
		"p2": testSnapshot("p2", "v2", "20.00", 10),
	}}
	svc := newTestService(cat, &mockValidator{}, newMockCartRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, "cust-1")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, "p1", 1)
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, "p2", 1)
	require.NoError(t, err)

	c, err = svc.RemoveItem(ctx, c.ID, c.Lines[0].ID)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "p2", c.Lines[0].ProductID)
}

func TestApplyCoupon(t *testing.T) {
	cat := &mockCatalog{snapshots: map[string]*catalog.Snapshot{
		"p1": testSnapshot("p1", "v1", "100.00", 10),
	}}
	v := &mockValidator{discount: &coupon.Discount{Amount: money.MustParse("10.00", "EGP")}}
	svc := newTestService(cat, v, newMockCartRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, "cust-1")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, "p1", 1)
	require.NoError(t, err)

	c, err = svc.ApplyCoupon(ctx, c.ID, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", c.CouponCode)
}

func TestApplyCoupon_Invalid(t *testing.T) {
	cat := &mockCatalog{snapshots: map[string]*catalog.Snapshot{
		"p1": testSnapshot("p1", "v1", "100.00", 10),
	}}
	v := &mockValidator{err: coupon.ErrInvalidCoupon}
	svc := newTestService(cat, v, newMockCartRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, "cust-1")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, "p1", 1)
	require.NoError(t, err)

	_, err = svc.ApplyCoupon(ctx, c.ID, "BOGUS")
	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)

	stored, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.CouponCode)
}

func TestComputeTotals(t *testing.T) {
	cat := &mockCatalog{snapshots: map[string]*catalog.Snapshot{
		"p1": testSnapshot("p1", "v1", "100.00", 10),
	}}
	v := &mockValidator{discount: &coupon.Discount{Amount: money.MustParse("10.00", "EGP")}}
	svc := newTestService(cat, v, newMockCartRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, "cust-1")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, "p1", 1)
	require.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, c.ID, "SAVE10")
	require.NoError(t, err)

	totals, err := svc.ComputeTotals(ctx, c.ID, pricing.Address{Country: "EG"}, "standard")
	require.NoError(t, err)
	assert.True(t, money.MustParse("100.00", "EGP").Equal(totals.Subtotal))
	assert.True(t, money.MustParse("10.00", "EGP").Equal(totals.Discount))
	assert.True(t, money.MustParse("90.00", "EGP").Equal(totals.Total))
}

func TestComputeTotals_EmptyCart(t *testing.T) {
	svc := newTestService(&mockCatalog{}, &mockValidator{}, newMockCartRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, "cust-1")
	require.NoError(t, err)

	totals, err := svc.ComputeTotals(ctx, c.ID, pricing.Address{Country: "EG"}, "standard")
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Tax.IsZero())
	assert.True(t, totals.Shipping.IsZero())
	assert.True(t, totals.Discount.IsZero())
	assert.True(t, totals.Total.IsZero())
	assert.Equal(t, "EGP", totals.Total.Currency())
}

func TestMutate_ConvertedCart(t *testing.T) {
	cat := &mockCatalog{snapshots: map[string]*catalog.Snapshot{
		"p1": testSnapshot("p1", "v1", "100.00", 10),
	}}
	repo := newMockCartRepo()
	svc := newTestService(cat, &mockValidator{}, repo)
	ctx := context.Background()

	c, err := svc.Create(ctx, "cust-1")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, "p1", 1)
	require.NoError(t, err)

	repo.carts[c.ID].Status = StatusConverted

	_, err = svc.AddItem(ctx, c.ID, "p1", 1)
	require.ErrorIs(t, err, ErrConverted)
}

func TestMarkConverted_ExactlyOnce(t *testing.T) {
	c := &Cart{ID: "c1", Status: StatusActive}

	require.NoError(t, c.MarkConverted())
	require.ErrorIs(t, c.MarkConverted(), ErrConverted)
}

func TestSave_ConcurrentModification(t *testing.T) {
	repo := newMockCartRepo()
	ctx := context.Background()

	c := &Cart{ID: "c1", Status: StatusActive, Currency: "EGP"}
	require.NoError(t, repo.Create(ctx, c))

	first, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "c1")
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, first))
	require.ErrorIs(t, repo.Save(ctx, second), ErrConcurrentModification)
}

func TestReapExpired(t *testing.T) {
	repo := newMockCartRepo()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &Cart{ID: "old", Status: StatusActive, ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Create(ctx, &Cart{ID: "fresh", Status: StatusActive, ExpiresAt: now.Add(time.Hour)}))

	n, err := repo.ReapExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	old, err := repo.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, StatusAbandoned, old.Status)
}
