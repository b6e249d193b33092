// Package pricing aggregates tax and shipping quotes into order totals.
// The engine itself is stateless; rate lookup is delegated to external
// capability collaborators.
package pricing

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/vendora/internal/domain/money"
)

// Line is a priced order line grouped under its vendor.
type Line struct {
	ProductID string
	VendorID  string
	Quantity  int
	UnitPrice money.Money
}

// Total returns quantity × unit price.
func (l Line) Total() (money.Money, error) {
	return l.UnitPrice.MulInt(int64(l.Quantity))
}

// Address is the destination used for tax and shipping quotes.
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// TaxQuoter computes tax for a set of lines shipped to an address.
type TaxQuoter interface {
	ComputeTax(ctx context.Context, lines []Line, dest Address) (money.Money, error)
}

// ShippingQuoter quotes shipping for lines grouped by vendor.
type ShippingQuoter interface {
	Quote(ctx context.Context, lines []Line, dest Address, method string) (money.Money, error)
}

// Totals is the order-total breakdown. Invariant:
// Total = Subtotal + Tax + Shipping - Discount, floored at zero.
type Totals struct {
	Subtotal money.Money
	Tax      money.Money
	Shipping money.Money
	Discount money.Money
	Total    money.Money
}

// Engine computes totals from lines, a destination, and a discount.
type Engine struct {
	tax      TaxQuoter
	shipping ShippingQuoter
}

// NewEngine creates an Engine with the given rate capabilities.
func NewEngine(tax TaxQuoter, shipping ShippingQuoter) *Engine {
	return &Engine{tax: tax, shipping: shipping}
}

// DiscountInput is the already-validated coupon result fed into Compute.
type DiscountInput struct {
	Amount       money.Money
	FreeShipping bool
}

// Compute prices the lines: subtotal from the lines themselves, tax and
// shipping from the capability collaborators, discount applied last.
// A free-shipping discount zeroes the shipping amount instead of reducing
// the subtotal. Recomputation is idempotent: the same inputs always yield
// the same totals.
func (e *Engine) Compute(ctx context.Context, lines []Line, dest Address, method string, discount DiscountInput) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, errors.New("pricing: no lines to price")
	}

	currency := lines[0].UnitPrice.Currency()
	subtotal := money.Zero(currency)
	for _, line := range lines {
		lt, err := line.Total()
		if err != nil {
			return Totals{}, errors.Wrapf(err, "line total for product %s", line.ProductID)
		}
		subtotal, err = subtotal.Add(lt)
		if err != nil {
			return Totals{}, errors.Wrap(err, "accumulate subtotal")
		}
	}

	tax, err := e.tax.ComputeTax(ctx, lines, dest)
	if err != nil {
		return Totals{}, errors.Wrap(err, "compute tax")
	}

	shipping, err := e.shipping.Quote(ctx, lines, dest, method)
	if err != nil {
		return Totals{}, errors.Wrap(err, "quote shipping")
	}
	if discount.FreeShipping {
		shipping = money.Zero(currency)
	}

	discountAmount := discount.Amount
	if discountAmount.Currency() == "" {
		discountAmount = money.Zero(currency)
	}

	gross, err := subtotal.Add(tax)
	if err != nil {
		return Totals{}, errors.Wrap(err, "add tax")
	}
	gross, err = gross.Add(shipping)
	if err != nil {
		return Totals{}, errors.Wrap(err, "add shipping")
	}

	total, err := gross.Sub(discountAmount)
	if err != nil {
		if errors.Is(err, money.ErrNegativeResult) {
			// Discount exceeds the order value; the customer never owes
			// a negative amount.
			total = money.Zero(currency)
		} else {
			return Totals{}, errors.Wrap(err, "subtract discount")
		}
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discountAmount,
		Total:    total,
	}, nil
}
