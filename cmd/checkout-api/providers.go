package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/vendora/internal/domain/money"
	"github.com/xenking/vendora/internal/domain/order"
	"github.com/xenking/vendora/internal/domain/pricing"
)

// flatRateTax quotes a single percentage over the taxable subtotal. Real
// deployments replace this with a tax provider integration.
type flatRateTax struct {
	rate decimal.Decimal
}

func (t flatRateTax) ComputeTax(ctx context.Context, lines []pricing.Line, dest pricing.Address) (money.Money, error) {
	if len(lines) == 0 {
		return money.Money{}, nil
	}

	subtotal := money.Zero(lines[0].UnitPrice.Currency())
	for _, l := range lines {
		total, err := l.Total()
		if err != nil {
			return money.Money{}, err
		}
		if subtotal, err = subtotal.Add(total); err != nil {
			return money.Money{}, err
		}
	}
	return subtotal.Percentage(t.rate)
}

var shippingRates = map[string]string{
	"standard":  "5.99",
	"express":   "14.99",
	"overnight": "29.99",
}

// tableShipping quotes a flat rate per shipping method, ignoring weight
// and destination. Unknown methods fall back to standard.
type tableShipping struct{}

func (tableShipping) Quote(ctx context.Context, lines []pricing.Line, dest pricing.Address, method string) (money.Money, error) {
	if len(lines) == 0 {
		return money.Money{}, nil
	}

	rate, ok := shippingRates[method]
	if !ok {
		rate = shippingRates["standard"]
	}
	return money.MustParse(rate, lines[0].UnitPrice.Currency()), nil
}

// sandboxGateway approves every charge and refund with a generated
// transaction ID. A "simulate" payment detail set to "decline" forces a
// failure, which exercises the payment failure path end to end.
type sandboxGateway struct{}

func (sandboxGateway) Charge(ctx context.Context, o *order.Order, method string, details map[string]string) (*order.ChargeResult, error) {
	if details["simulate"] == "decline" {
		return nil, errors.New("card declined")
	}
	return &order.ChargeResult{TransactionID: "txn_" + uuid.NewString()}, nil
}

func (sandboxGateway) Refund(ctx context.Context, o *order.Order, amount money.Money) (*order.ChargeResult, error) {
	return &order.ChargeResult{TransactionID: "rfn_" + uuid.NewString()}, nil
}
