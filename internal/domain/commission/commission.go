// Package commission accrues per-vendor platform commissions for confirmed
// orders and tracks their payout lifecycle.
package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/vendora/internal/domain/money"
)

// Status is the payout lifecycle of an accrued commission.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusPaid, StatusCancelled},
	StatusPaid:      {},
	StatusCancelled: {},
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

var (
	// ErrNotFound is returned when a requested commission does not exist.
	ErrNotFound = errors.New("commission: not found")
)

// InvalidTransitionError indicates an illegal payout-state move.
type InvalidTransitionError struct {
	CommissionID string
	From         Status
	To           Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("commission %s: invalid transition %s -> %s",
		e.CommissionID, e.From, e.To)
}

// VendorCommission is one vendor's share of one order. The platform fee is
// Rate applied to the vendor's item total; the commission amount is what the
// vendor receives after the fee.
type VendorCommission struct {
	ID               string
	VendorID         string
	OrderID          string
	OrderItemsAmount money.Money
	Rate             decimal.Decimal
	PlatformFee      money.Money
	CommissionAmount money.Money
	Status           Status
	AccruedAt        time.Time
}

// Transition moves the payout status, validating legality.
func (v *VendorCommission) Transition(next Status) error {
	if !v.Status.CanTransition(next) {
		return &InvalidTransitionError{CommissionID: v.ID, From: v.Status, To: next}
	}
	v.Status = next
	return nil
}

// RateProvider resolves the commission rate for a vendor. Rates are
// fractions, e.g. 0.15 for a 15% platform fee.
type RateProvider interface {
	RateFor(ctx context.Context, vendorID string) (decimal.Decimal, error)
}

// FixedRate is a RateProvider returning the same rate for every vendor.
type FixedRate struct {
	Rate decimal.Decimal
}

func (f FixedRate) RateFor(_ context.Context, _ string) (decimal.Decimal, error) {
	return f.Rate, nil
}

// Repository defines persistence for vendor commissions.
type Repository interface {
	Create(ctx context.Context, vc *VendorCommission) error
	Get(ctx context.Context, id string) (*VendorCommission, error)
	// FindByOrder returns all commissions accrued for the order.
	FindByOrder(ctx context.Context, orderID string) ([]VendorCommission, error)
	// FindByVendor returns the vendor's commissions in the given status.
	FindByVendor(ctx context.Context, vendorID string, status Status) ([]VendorCommission, error)
	Save(ctx context.Context, vc *VendorCommission) error
}
