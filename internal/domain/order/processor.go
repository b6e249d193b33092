package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/vendora/internal/domain/cart"
	"github.com/xenking/vendora/internal/domain/catalog"
	"github.com/xenking/vendora/internal/domain/coupon"
	"github.com/xenking/vendora/internal/domain/money"
	"github.com/xenking/vendora/internal/domain/pricing"
	"github.com/xenking/vendora/internal/domain/stock"
)

// PaymentFailedError indicates the payment capability declined or errored.
// Reason is for operator diagnostics; user-visible messaging stays generic.
type PaymentFailedError struct {
	OrderID string
	Reason  string
}

func (e *PaymentFailedError) Error() string {
	return fmt.Sprintf("order %s: payment failed: %s", e.OrderID, e.Reason)
}

// ChargeResult is the outcome of a successful charge or refund.
type ChargeResult struct {
	TransactionID string
}

// PaymentGateway is the external payment capability. Calls may block on
// the network; the processor never holds ledger locks across them,
// reservations are held via tokens once acquired.
type PaymentGateway interface {
	Charge(ctx context.Context, o *Order, method string, details map[string]string) (*ChargeResult, error)
	Refund(ctx context.Context, o *Order, amount money.Money) (*ChargeResult, error)
}

// CommissionAccruer accrues per-vendor commissions for a confirmed order.
// Implementations must be idempotent per order.
type CommissionAccruer interface {
	Accrue(ctx context.Context, o *Order) error
}

// Processor orchestrates cart→order conversion, stock reservation, payment,
// fulfillment, and cancellation/refund compensation. All collaborators are
// injected at construction.
type Processor struct {
	ledger      stock.Ledger
	catalog     catalog.Provider
	pricing     *pricing.Engine
	coupons     coupon.Validator
	payments    PaymentGateway
	commissions CommissionAccruer
	orders      Repository
	carts       cart.Repository
	now         func() time.Time
}

// NewProcessor creates a Processor with its injected collaborators.
func NewProcessor(
	ledger stock.Ledger,
	catalogProvider catalog.Provider,
	pricingEngine *pricing.Engine,
	coupons coupon.Validator,
	payments PaymentGateway,
	commissions CommissionAccruer,
	orders Repository,
	carts cart.Repository,
) *Processor {
	return &Processor{
		ledger:      ledger,
		catalog:     catalogProvider,
		pricing:     pricingEngine,
		coupons:     coupons,
		payments:    payments,
		commissions: commissions,
		orders:      orders,
		carts:       carts,
		now:         time.Now,
	}
}

// CreateFromCart converts a cart into a pending order: reserves stock for
// every line (all-or-nothing), re-prices against live catalog snapshots,
// and persists the order. Cart-cached prices are never trusted for the
// financial commitment.
func (p *Processor) CreateFromCart(
	ctx context.Context,
	cartID string,
	billing, shipping pricing.Address,
	paymentMethod, shippingMethod string,
) (*Order, []Event, error) {
	c, err := p.carts.Get(ctx, cartID)
	if err != nil {
		return nil, nil, err
	}
	if c.Status == cart.StatusConverted {
		return nil, nil, cart.ErrConverted
	}
	if len(c.Lines) == 0 {
		return nil, nil, ErrEmptyCart
	}

	// Live snapshots: quantity comes from the cart, everything else from
	// the catalog as of right now.
	snaps := make([]*catalog.Snapshot, len(c.Lines))
	for i, line := range c.Lines {
		snap, err := p.catalog.GetProductSnapshot(ctx, line.ProductID)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "snapshot product %s", line.ProductID)
		}
		snaps[i] = snap
	}

	discount, err := p.validateCoupon(ctx, c, snaps)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]pricing.Line, len(c.Lines))
	for i, line := range c.Lines {
		lines[i] = pricing.Line{
			ProductID: line.ProductID,
			VendorID:  snaps[i].VendorID,
			Quantity:  line.Quantity,
			UnitPrice: snaps[i].Price,
		}
	}
	totals, err := p.pricing.Compute(ctx, lines, shipping, shippingMethod, discount)
	if err != nil {
		return nil, nil, errors.Wrap(err, "price order")
	}

	// Reserve every line; the first failure releases everything already
	// acquired so no half-reserved order is ever visible.
	tokens := make([]string, 0, len(c.Lines))
	releaseAll := func() {
		for _, token := range tokens {
			_ = p.ledger.Release(ctx, token)
		}
	}
	for _, line := range c.Lines {
		r, err := p.ledger.Reserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			releaseAll()
			return nil, nil, err
		}
		tokens = append(tokens, r.Token)
	}

	// Convert the cart before creating the order: the version check makes
	// conversion exactly-once even under concurrent checkouts.
	if err := c.MarkConverted(); err != nil {
		releaseAll()
		return nil, nil, err
	}
	if err := p.carts.Save(ctx, c); err != nil {
		releaseAll()
		return nil, nil, errors.Wrap(err, "convert cart")
	}

	now := p.now()
	o := &Order{
		ID:              uuid.New().String(),
		Number:          p.newOrderNumber(now),
		CustomerRef:     c.OwnerRef,
		Currency:        c.Currency,
		BillingAddress:  billing,
		ShippingAddress: shipping,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Discount:        totals.Discount,
		CouponCode:      c.CouponCode,
		ShippingMethod:  shippingMethod,

		Status:            StatusPending,
		PaymentStatus:     PaymentPending,
		FulfillmentStatus: FulfillmentUnfulfilled,
		PlacedAt:          now,
	}
	for i, line := range c.Lines {
		total, err := snaps[i].Price.MulInt(int64(line.Quantity))
		if err != nil {
			releaseAll()
			return nil, nil, errors.Wrap(err, "item total")
		}
		o.Items = append(o.Items, Item{
			ID:                uuid.New().String(),
			OrderID:           o.ID,
			ProductID:         line.ProductID,
			VendorID:          snaps[i].VendorID,
			ProductName:       snaps[i].Name,
			ProductSKU:        snaps[i].SKU,
			Quantity:          line.Quantity,
			UnitPrice:         snaps[i].Price,
			TotalPrice:        total,
			FulfillmentStatus: FulfillmentUnfulfilled,
			ReservationToken:  tokens[i],
		})
	}
	if err := o.RecomputeTotals(); err != nil {
		releaseAll()
		return nil, nil, err
	}

	if err := p.orders.Create(ctx, o); err != nil {
		// Compensate: free the stock and hand the cart back.
		releaseAll()
		c.Status = cart.StatusActive
		_ = p.carts.Save(ctx, c)
		return nil, nil, errors.Wrap(err, "create order")
	}

	events := []Event{p.event(EventOrderPlaced, o)}
	return o, events, nil
}

func (p *Processor) validateCoupon(ctx context.Context, c *cart.Cart, snaps []*catalog.Snapshot) (pricing.DiscountInput, error) {
	if c.CouponCode == "" {
		return pricing.DiscountInput{Amount: money.Zero(c.Currency)}, nil
	}

	items := make([]coupon.Item, len(c.Lines))
	for i, line := range c.Lines {
		items[i] = coupon.Item{
			ProductID: line.ProductID,
			Category:  snaps[i].Category,
			UnitPrice: snaps[i].Price,
			Quantity:  line.Quantity,
		}
	}
	d, err := p.coupons.Validate(ctx, c.CouponCode, items, c.OwnerRef)
	if err != nil {
		return pricing.DiscountInput{}, errors.Wrapf(err, "validate coupon %s", c.CouponCode)
	}
	return pricing.DiscountInput{Amount: d.Amount, FreeShipping: d.FreeShipping}, nil
}

// ProcessPayment invokes the payment capability for a pending order.
// Success commits all stock reservations, marks the order paid and
// confirmed, and accrues vendor commissions. Failure releases the
// reservations and leaves the order pending so the caller may retry; the
// processor itself never retries.
func (p *Processor) ProcessPayment(ctx context.Context, orderID, method string, details map[string]string) (*Order, []Event, error) {
	o, err := p.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o.Status != StatusPending || o.PaymentStatus.Paid() {
		return nil, nil, &InvalidTransitionError{
			OrderID: o.ID,
			Axis:    "status",
			From:    string(o.Status),
			To:      string(StatusConfirmed),
		}
	}

	// A retry after a failed charge holds no live reservations (they were
	// released on failure), so fresh ones must be taken before touching
	// the gateway. Insufficient stock fails the retry without a charge.
	if o.PaymentStatus == PaymentFailed {
		if err := p.reserveItems(ctx, o); err != nil {
			return nil, nil, err
		}
		if err := p.orders.Save(ctx, o); err != nil {
			return nil, nil, errors.Wrap(err, "save renewed reservations")
		}
	}

	res, err := p.payments.Charge(ctx, o, method, details)
	if err != nil {
		// Compensate: free the reserved stock, record the failure, keep
		// the order pending for a caller-driven retry.
		for _, item := range o.Items {
			_ = p.ledger.Release(ctx, item.ReservationToken)
		}
		if terr := o.transitionPayment(PaymentFailed); terr != nil {
			return nil, nil, terr
		}
		if serr := p.orders.Save(ctx, o); serr != nil {
			return nil, nil, errors.Wrap(serr, "record payment failure")
		}
		events := []Event{p.event(EventPaymentFailed, o)}
		return o, events, &PaymentFailedError{OrderID: o.ID, Reason: err.Error()}
	}
	o.TransactionID = res.TransactionID

	for _, item := range o.Items {
		if err := p.ledger.Commit(ctx, item.ReservationToken); err != nil {
			return nil, nil, errors.Wrapf(err, "commit reservation for product %s", item.ProductID)
		}
	}

	if err := o.transitionPayment(PaymentPaid); err != nil {
		return nil, nil, err
	}
	if err := o.transition(StatusConfirmed); err != nil {
		return nil, nil, err
	}
	now := p.now()
	o.ConfirmedAt = &now

	if err := p.orders.Save(ctx, o); err != nil {
		return nil, nil, errors.Wrap(err, "save confirmed order")
	}

	// Accrual is guarded by the status transition above: a repeated call
	// for an already-confirmed order never reaches this point, and the
	// accruer itself is idempotent per order.
	if err := p.commissions.Accrue(ctx, o); err != nil {
		return nil, nil, errors.Wrap(err, "accrue commissions")
	}

	if o.CouponCode != "" {
		if err := p.coupons.Redeem(ctx, o.CouponCode, o.CustomerRef); err != nil {
			return nil, nil, errors.Wrapf(err, "redeem coupon %s", o.CouponCode)
		}
	}

	events := []Event{p.event(EventOrderConfirmed, o)}
	return o, events, nil
}

// reserveItems takes a fresh reservation for every item, all or nothing,
// and records the new tokens on the items.
func (p *Processor) reserveItems(ctx context.Context, o *Order) error {
	taken := make([]string, 0, len(o.Items))
	for i := range o.Items {
		r, err := p.ledger.Reserve(ctx, o.Items[i].ProductID, o.Items[i].Quantity)
		if err != nil {
			for _, token := range taken {
				_ = p.ledger.Release(ctx, token)
			}
			return errors.Wrapf(err, "re-reserve product %s", o.Items[i].ProductID)
		}
		taken = append(taken, r.Token)
		o.Items[i].ReservationToken = r.Token
	}
	return nil
}

// Ship marks the whole order shipped. Valid only for a paid, confirmed (or
// processing) order that has not already shipped.
func (p *Processor) Ship(ctx context.Context, orderID, trackingNumber string) (*Order, []Event, error) {
	o, err := p.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !o.PaymentStatus.Paid() || o.FulfillmentStatus.Shipped() {
		return nil, nil, &InvalidTransitionError{
			OrderID: o.ID,
			Axis:    "fulfillment",
			From:    string(o.FulfillmentStatus),
			To:      string(FulfillmentShipped),
		}
	}
	if err := o.transition(StatusShipped); err != nil {
		return nil, nil, err
	}

	now := p.now()
	o.FulfillmentStatus = FulfillmentShipped
	o.ShippedAt = &now
	for i := range o.Items {
		o.Items[i].FulfillmentStatus = FulfillmentShipped
		if trackingNumber != "" {
			o.Items[i].TrackingNumber = trackingNumber
		}
	}

	if err := p.orders.Save(ctx, o); err != nil {
		return nil, nil, errors.Wrap(err, "save shipped order")
	}

	events := []Event{p.event(EventOrderShipped, o)}
	return o, events, nil
}

// Deliver marks a shipped order as delivered, a terminal state.
func (p *Processor) Deliver(ctx context.Context, orderID string) (*Order, []Event, error) {
	o, err := p.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o.FulfillmentStatus != FulfillmentShipped {
		return nil, nil, &InvalidTransitionError{
			OrderID: o.ID,
			Axis:    "fulfillment",
			From:    string(o.FulfillmentStatus),
			To:      string(FulfillmentDelivered),
		}
	}
	if err := o.transition(StatusDelivered); err != nil {
		return nil, nil, err
	}

	now := p.now()
	o.FulfillmentStatus = FulfillmentDelivered
	o.DeliveredAt = &now
	for i := range o.Items {
		o.Items[i].FulfillmentStatus = FulfillmentDelivered
	}

	if err := p.orders.Save(ctx, o); err != nil {
		return nil, nil, errors.Wrap(err, "save delivered order")
	}

	events := []Event{p.event(EventOrderDelivered, o)}
	return o, events, nil
}

// Cancel cancels an order that has not shipped. Uncommitted reservations
// are released; a captured payment is refunded through the gateway.
// Committed stock is not restocked here; returns are a separate flow.
func (p *Processor) Cancel(ctx context.Context, orderID, reason string) (*Order, []Event, error) {
	o, err := p.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !o.Status.Cancellable() || o.FulfillmentStatus.Shipped() {
		return nil, nil, &InvalidTransitionError{
			OrderID: o.ID,
			Axis:    "status",
			From:    string(o.Status),
			To:      string(StatusCancelled),
		}
	}

	// Release is a no-op for committed (paid) reservations, so this only
	// frees stock that was still held.
	for _, item := range o.Items {
		_ = p.ledger.Release(ctx, item.ReservationToken)
	}

	events := make([]Event, 0, 2)
	if o.PaymentStatus.Paid() {
		res, err := p.payments.Refund(ctx, o, o.Total)
		if err != nil {
			return nil, nil, errors.Wrap(err, "refund payment")
		}
		o.RefundTransactionID = res.TransactionID
		if err := o.transitionPayment(PaymentRefunded); err != nil {
			return nil, nil, err
		}
		events = append(events, p.event(EventOrderRefunded, o))
	}

	if err := o.transition(StatusCancelled); err != nil {
		return nil, nil, err
	}
	now := p.now()
	o.CancelledAt = &now
	o.CancellationReason = reason

	if err := p.orders.Save(ctx, o); err != nil {
		return nil, nil, errors.Wrap(err, "save cancelled order")
	}

	events = append(events, p.event(EventOrderCancelled, o))
	return o, events, nil
}

func (p *Processor) event(kind EventKind, o *Order) Event {
	return Event{
		Kind:       kind,
		OrderID:    o.ID,
		Number:     o.Number,
		CustomerID: o.CustomerRef,
		At:         p.now(),
	}
}

// newOrderNumber builds a unique human-readable order number, e.g.
// ORD-20260301-7F3A21C9.
func (p *Processor) newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
