// Package coupon validates and prices code-based discounts against cart
// contents and usage history.
package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/vendora/internal/domain/money"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypePercentage applies a percentage-based discount to the subtotal,
	// optionally capped at MaxDiscount.
	TypePercentage Type = "percentage"
	// TypeFixed applies a fixed monetary discount capped at the subtotal.
	TypeFixed Type = "fixed"
	// TypeFreeShipping zeroes the shipping amount instead of touching the
	// subtotal.
	TypeFreeShipping Type = "free_shipping"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found or not active.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its
	// allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
)

// NotApplicableError indicates the cart does not satisfy one of the
// coupon's eligibility conditions. Reason names the unmet condition.
type NotApplicableError struct {
	Code   string
	Reason string
}

func (e *NotApplicableError) Error() string {
	return fmt.Sprintf("coupon %s not applicable: %s", e.Code, e.Reason)
}

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	Code             string
	Type             Type
	Value            decimal.Decimal
	MaxDiscount      money.Money // cap for percentage rules; zero means uncapped
	MinAmount        money.Money // minimum cart subtotal; zero means none
	Products         []string    // applicable product IDs; empty means all
	Categories       []string    // applicable categories; empty means all
	ValidFrom        *time.Time
	ValidUntil       *time.Time
	MaxUses          int // global usage limit; 0 means unlimited
	Uses             int
	PerCustomerLimit int // per-customer usage limit; 0 means unlimited
	Active           bool
	Description      string
}

// Discount holds the priced result of applying a coupon.
type Discount struct {
	Amount       money.Money
	FreeShipping bool
	Description  string
}

// Item is a cart line viewed by the coupon engine.
type Item struct {
	ProductID string
	Category  string
	UnitPrice money.Money
	Quantity  int
}

// Repository provides lookup and redemption tracking for coupon rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	// CustomerUses returns how many times customerRef has redeemed code.
	CustomerUses(ctx context.Context, code, customerRef string) (int, error)
	// RecordRedemption increments both the global and the per-customer
	// usage counters.
	RecordRedemption(ctx context.Context, code, customerRef string) error
}

// Validator validates a coupon code against cart items and returns the
// computed discount. Redeem is called once the discount is actually
// consumed by a confirmed order.
type Validator interface {
	Validate(ctx context.Context, code string, items []Item, customerRef string) (*Discount, error)
	Redeem(ctx context.Context, code, customerRef string) error
}
