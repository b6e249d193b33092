package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/vendora/internal/domain/money"
)

func testOrder(t *testing.T) *Order {
	t.Helper()
	return &Order{
		ID:       "ord-1",
		Currency: "USD",
		Items: []Item{
			{VendorID: "v1", TotalPrice: money.MustParse("60", "USD")},
			{VendorID: "v2", TotalPrice: money.MustParse("40", "USD")},
			{VendorID: "v1", TotalPrice: money.MustParse("30", "USD")},
		},
		Tax:      money.MustParse("13", "USD"),
		Shipping: money.MustParse("25", "USD"),
		Discount: money.MustParse("10", "USD"),
	}
}

func TestRecomputeTotals(t *testing.T) {
	o := testOrder(t)
	require.NoError(t, o.RecomputeTotals())

	assert.True(t, o.Subtotal.Equal(money.MustParse("130", "USD")))
	assert.True(t, o.Total.Equal(money.MustParse("158", "USD")))

	// Recomputation is idempotent.
	require.NoError(t, o.RecomputeTotals())
	assert.True(t, o.Total.Equal(money.MustParse("158", "USD")))
}

func TestRecomputeTotals_FloorsAtZero(t *testing.T) {
	o := testOrder(t)
	o.Discount = money.MustParse("500", "USD")
	require.NoError(t, o.RecomputeTotals())
	assert.True(t, o.Total.IsZero())
}

func TestVendors(t *testing.T) {
	o := testOrder(t)
	assert.Equal(t, []string{"v1", "v2"}, o.Vendors())
}

func TestVendorItemsTotal(t *testing.T) {
	o := testOrder(t)

	v1, err := o.VendorItemsTotal("v1")
	require.NoError(t, err)
	assert.True(t, v1.Equal(money.MustParse("90", "USD")))

	v2, err := o.VendorItemsTotal("v2")
	require.NoError(t, err)
	assert.True(t, v2.Equal(money.MustParse("40", "USD")))

	none, err := o.VendorItemsTotal("v3")
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}
