// Package order holds the order aggregate, its three status axes, and the
// processor that drives cart→order conversion, stock reservation, payment,
// and compensation.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/vendora/internal/domain/money"
	"github.com/xenking/vendora/internal/domain/pricing"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order: not found")
	// ErrEmptyCart is returned when converting a cart with no lines.
	ErrEmptyCart = errors.New("order: cart has no items")
	// ErrConcurrentModification is returned by the repository when a save
	// loses an optimistic-concurrency race. Callers retry against fresh
	// state.
	ErrConcurrentModification = errors.New("order: concurrent modification")
)

// Item is a line of a placed order. Name, SKU, and unit price are
// snapshots taken at order creation; the item is owned exclusively by its
// order. ReservationToken ties the line to its pending stock deduction
// until payment commits or compensation releases it.
type Item struct {
	ID                string
	OrderID           string
	ProductID         string
	VendorID          string
	ProductName       string
	ProductSKU        string
	Quantity          int
	UnitPrice         money.Money
	TotalPrice        money.Money
	FulfillmentStatus FulfillmentStatus
	TrackingNumber    string
	ReservationToken  string
}

// Order is the immutable-identity aggregate for a placed purchase.
// Totals obey Total = Subtotal + Tax + Shipping - Discount at all times.
type Order struct {
	ID              string
	Number          string
	CustomerRef     string
	Currency        string
	BillingAddress  pricing.Address
	ShippingAddress pricing.Address
	Items           []Item
	Subtotal        money.Money
	Tax             money.Money
	Shipping        money.Money
	Discount        money.Money
	Total           money.Money
	CouponCode      string
	ShippingMethod  string

	Status            Status
	PaymentStatus     PaymentStatus
	FulfillmentStatus FulfillmentStatus

	// Gateway references for the captured payment and its refund.
	TransactionID       string
	RefundTransactionID string

	PlacedAt           time.Time
	ConfirmedAt        *time.Time
	ShippedAt          *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string

	Version int64
}

// Vendors returns the distinct vendor IDs across the order's items, in
// first-appearance order.
func (o *Order) Vendors() []string {
	seen := make(map[string]struct{}, len(o.Items))
	var vendors []string
	for _, item := range o.Items {
		if _, ok := seen[item.VendorID]; ok {
			continue
		}
		seen[item.VendorID] = struct{}{}
		vendors = append(vendors, item.VendorID)
	}
	return vendors
}

// VendorItemsTotal sums TotalPrice over the vendor's items.
func (o *Order) VendorItemsTotal(vendorID string) (money.Money, error) {
	sum := money.Zero(o.Currency)
	for _, item := range o.Items {
		if item.VendorID != vendorID {
			continue
		}
		var err error
		sum, err = sum.Add(item.TotalPrice)
		if err != nil {
			return money.Money{}, errors.Wrap(err, "sum vendor items")
		}
	}
	return sum, nil
}

// RecomputeTotals re-derives Subtotal and Total from the items and the
// stored tax/shipping/discount amounts. Recomputation is idempotent and
// the result is never negative.
func (o *Order) RecomputeTotals() error {
	subtotal := money.Zero(o.Currency)
	for _, item := range o.Items {
		var err error
		subtotal, err = subtotal.Add(item.TotalPrice)
		if err != nil {
			return errors.Wrap(err, "sum items")
		}
	}
	o.Subtotal = subtotal

	gross, err := subtotal.Add(o.Tax)
	if err != nil {
		return errors.Wrap(err, "add tax")
	}
	gross, err = gross.Add(o.Shipping)
	if err != nil {
		return errors.Wrap(err, "add shipping")
	}

	total, err := gross.Sub(o.Discount)
	if err != nil {
		if !errors.Is(err, money.ErrNegativeResult) {
			return errors.Wrap(err, "subtract discount")
		}
		total = money.Zero(o.Currency)
	}
	o.Total = total
	return nil
}

// transition moves the order status, validating against the legality table.
func (o *Order) transition(next Status) error {
	if !o.Status.CanTransition(next) {
		return &InvalidTransitionError{
			OrderID: o.ID,
			Axis:    "status",
			From:    string(o.Status),
			To:      string(next),
		}
	}
	o.Status = next
	return nil
}

// transitionPayment moves the payment status, validating legality.
func (o *Order) transitionPayment(next PaymentStatus) error {
	if !o.PaymentStatus.CanTransition(next) {
		return &InvalidTransitionError{
			OrderID: o.ID,
			Axis:    "payment",
			From:    string(o.PaymentStatus),
			To:      string(next),
		}
	}
	o.PaymentStatus = next
	return nil
}

// Repository defines persistence for orders. Save must reject writes whose
// Version does not match the stored aggregate with
// ErrConcurrentModification.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Save(ctx context.Context, o *Order) error
}
