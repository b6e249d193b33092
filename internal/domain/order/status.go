package order

import "fmt"

// Status is the order lifecycle state. Happy path:
// pending → confirmed → processing → shipped → delivered.
// cancelled is reachable from pending/confirmed/processing; refunded from
// any post-payment state. delivered, cancelled, and refunded are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// statusTransitions is the legality table for the order status machine.
// Keeping it in one table avoids scattering per-state logic.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusShipped, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status transitions are possible
// apart from refund bookkeeping.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusRefunded
}

// Cancellable reports whether an order in this status may still be
// cancelled (fulfillment state permitting).
func (s Status) Cancellable() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing:
		return true
	default:
		return false
	}
}

// PaymentStatus is the parallel payment axis:
// pending → paid | failed, and paid → refunded.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentFailed:   {PaymentPaid, PaymentFailed}, // retries re-enter from failed
	PaymentPaid:     {PaymentRefunded},
	PaymentRefunded: {},
}

// CanTransition reports whether moving from p to next is legal.
func (p PaymentStatus) CanTransition(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Paid reports whether the order's payment has been captured.
func (p PaymentStatus) Paid() bool { return p == PaymentPaid }

// FulfillmentStatus tracks shipping progress, at both order and item level.
type FulfillmentStatus string

const (
	FulfillmentUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentShipped     FulfillmentStatus = "shipped"
	FulfillmentDelivered   FulfillmentStatus = "delivered"
)

// Shipped reports whether the shipment has left the warehouse.
func (f FulfillmentStatus) Shipped() bool {
	return f == FulfillmentShipped || f == FulfillmentDelivered
}

// InvalidTransitionError indicates an illegal state-machine move.
type InvalidTransitionError struct {
	OrderID string
	Axis    string // "status", "payment", or "fulfillment"
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: invalid %s transition %s -> %s",
		e.OrderID, e.Axis, e.From, e.To)
}
