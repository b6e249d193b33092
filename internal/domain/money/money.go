// Package money provides an exact decimal money value type.
//
// All amounts are scaled to 4 fractional digits with half-up rounding on
// construction and after multiplication. Values are immutable: every
// operation returns a new Money.
package money

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every amount is rounded to.
const Scale = 4

var (
	// ErrNegativeAmount is returned when constructing a Money with a
	// negative amount.
	ErrNegativeAmount = errors.New("money: amount must not be negative")
	// ErrNegativeResult is returned when a subtraction would yield a
	// negative amount.
	ErrNegativeResult = errors.New("money: result must not be negative")
	// ErrNegativeFactor is returned when multiplying by a negative factor.
	ErrNegativeFactor = errors.New("money: factor must not be negative")
)

// CurrencyMismatchError indicates arithmetic between two different currencies.
type CurrencyMismatchError struct {
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("money: currency mismatch: %s vs %s", e.Left, e.Right)
}

// Money is an immutable amount in a single currency.
// The zero value is 0 units of the empty currency; prefer Zero(currency).
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New creates a Money from a decimal amount and a 3-letter currency code.
// The amount is rounded half-up to 4 fractional digits.
func New(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{amount: amount.Round(Scale), currency: currency}, nil
}

// MustParse creates a Money from a decimal string, panicking on invalid
// input. Intended for constants and tests.
func MustParse(amount, currency string) Money {
	m, err := New(decimal.RequireFromString(amount), currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the 3-letter currency code.
func (m Money) Currency() string { return m.currency }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// String formats the amount with its currency, e.g. "100.0000 EGP".
func (m Money) String() string {
	return m.amount.StringFixed(Scale) + " " + m.currency
}

func (m Money) sameCurrency(o Money) error {
	if m.currency != o.currency {
		return &CurrencyMismatchError{Left: m.currency, Right: o.currency}
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(o.amount), currency: m.currency}, nil
}

// Sub returns m - o. It returns ErrNegativeResult when o exceeds m.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	res := m.amount.Sub(o.amount)
	if res.IsNegative() {
		return Money{}, ErrNegativeResult
	}
	return Money{amount: res, currency: m.currency}, nil
}

// Mul returns m scaled by a non-negative factor, rounded to 4 digits.
func (m Money) Mul(factor decimal.Decimal) (Money, error) {
	if factor.IsNegative() {
		return Money{}, ErrNegativeFactor
	}
	return Money{amount: m.amount.Mul(factor).Round(Scale), currency: m.currency}, nil
}

// MulInt returns m scaled by a non-negative integer quantity.
func (m Money) MulInt(qty int64) (Money, error) {
	return m.Mul(decimal.NewFromInt(qty))
}

// Percentage returns pct percent of m, e.g. Percentage(10) is a tenth.
func (m Money) Percentage(pct decimal.Decimal) (Money, error) {
	if pct.IsNegative() {
		return Money{}, ErrNegativeFactor
	}
	amount := m.amount.Mul(pct).Div(decimal.NewFromInt(100)).Round(Scale)
	return Money{amount: amount, currency: m.currency}, nil
}

// Cmp compares m against o: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	return m.amount.Cmp(o.amount), nil
}

// Equal reports whether both amount and currency are equal.
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

// Min returns the smaller of m and o.
func Min(m, o Money) (Money, error) {
	c, err := m.Cmp(o)
	if err != nil {
		return Money{}, err
	}
	if c <= 0 {
		return m, nil
	}
	return o, nil
}
