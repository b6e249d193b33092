package order

import "time"

// EventKind names a domain event produced by a processor operation.
type EventKind string

const (
	EventOrderPlaced    EventKind = "order.placed"
	EventOrderConfirmed EventKind = "order.confirmed"
	EventPaymentFailed  EventKind = "order.payment_failed"
	EventOrderShipped   EventKind = "order.shipped"
	EventOrderDelivered EventKind = "order.delivered"
	EventOrderCancelled EventKind = "order.cancelled"
	EventOrderRefunded  EventKind = "order.refunded"
)

// Event is returned alongside each mutating processor operation instead of
// being dispatched through a hidden event bus. The caller decides what to
// do with it (notify, record, drop) and a failure to deliver never rolls
// back the order.
type Event struct {
	Kind       EventKind
	OrderID    string
	Number     string
	CustomerID string
	At         time.Time
}
