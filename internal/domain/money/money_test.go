package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RoundsToFourDigits(t *testing.T) {
	m, err := New(decimal.RequireFromString("10.12345"), "EGP")
	require.NoError(t, err)
	assert.Equal(t, "10.1235 EGP", m.String())
	assert.Equal(t, "EGP", m.Currency())
}

func TestNew_NegativeAmount(t *testing.T) {
	_, err := New(decimal.RequireFromString("-0.01"), "EGP")
	require.ErrorIs(t, err, ErrNegativeAmount)
}

func TestAdd(t *testing.T) {
	a := MustParse("100.00", "EGP")
	b := MustParse("50.50", "EGP")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, MustParse("150.50", "EGP").Equal(sum))
}

func TestAdd_CurrencyMismatch(t *testing.T) {
	a := MustParse("1.00", "EGP")
	b := MustParse("1.00", "USD")

	_, err := a.Add(b)

	var cmErr *CurrencyMismatchError
	require.ErrorAs(t, err, &cmErr)
	assert.Equal(t, "EGP", cmErr.Left)
	assert.Equal(t, "USD", cmErr.Right)
}

func TestSub(t *testing.T) {
	a := MustParse("100.00", "EGP")
	b := MustParse("40.00", "EGP")

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, MustParse("60.00", "EGP").Equal(diff))
}

func TestSub_NegativeResult(t *testing.T) {
	a := MustParse("10.00", "EGP")
	b := MustParse("10.01", "EGP")

	_, err := a.Sub(b)
	require.ErrorIs(t, err, ErrNegativeResult)
}

func TestSub_ExactZero(t *testing.T) {
	a := MustParse("10.00", "EGP")

	diff, err := a.Sub(a)
	require.NoError(t, err)
	assert.True(t, diff.IsZero())
}

func TestMul(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		factor string
		want   string
	}{
		{"integer factor", "50.00", "2", "100.00"},
		{"fractional factor rounds half-up", "10.00", "0.33335", "3.3335"},
		{"rounding boundary", "0.00005", "1", "0.0001"},
		{"zero factor", "99.99", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MustParse(tt.amount, "EGP")
			got, err := m.Mul(decimal.RequireFromString(tt.factor))
			require.NoError(t, err)
			assert.True(t, MustParse(tt.want, "EGP").Equal(got),
				"expected %s, got %s", tt.want, got)
		})
	}
}

func TestMul_NegativeFactor(t *testing.T) {
	m := MustParse("10.00", "EGP")
	_, err := m.Mul(decimal.RequireFromString("-1"))
	require.ErrorIs(t, err, ErrNegativeFactor)
}

func TestPercentage(t *testing.T) {
	m := MustParse("100.00", "EGP")

	got, err := m.Percentage(decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, MustParse("10.00", "EGP").Equal(got))
}

func TestPercentage_Rounding(t *testing.T) {
	m := MustParse("33.3333", "EGP")

	got, err := m.Percentage(decimal.NewFromInt(15))
	require.NoError(t, err)
	// 33.3333 * 0.15 = 4.999995 -> 5.0000 half-up.
	assert.True(t, MustParse("5.0000", "EGP").Equal(got))
}

func TestCmp(t *testing.T) {
	small := MustParse("1.00", "EGP")
	big := MustParse("2.00", "EGP")

	c, err := small.Cmp(big)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = big.Cmp(small)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = small.Cmp(small)
	require.NoError(t, err)
	assert.Equal(t, 0, c)
}

func TestMin(t *testing.T) {
	a := MustParse("5.00", "EGP")
	b := MustParse("7.00", "EGP")

	m, err := Min(a, b)
	require.NoError(t, err)
	assert.True(t, a.Equal(m))

	m, err = Min(b, a)
	require.NoError(t, err)
	assert.True(t, a.Equal(m))
}

func TestZero(t *testing.T) {
	z := Zero("EGP")
	assert.True(t, z.IsZero())
	assert.Equal(t, "EGP", z.Currency())
}
