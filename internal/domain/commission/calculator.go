package commission

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/vendora/internal/domain/order"
)

// Calculator accrues commissions for confirmed orders, one record per
// distinct vendor. It satisfies the accrual capability the order processor
// expects.
type Calculator struct {
	rates RateProvider
	repo  Repository
	now   func() time.Time
}

// NewCalculator creates a Calculator.
func NewCalculator(rates RateProvider, repo Repository) *Calculator {
	return &Calculator{rates: rates, repo: repo, now: time.Now}
}

// Accrue writes one pending commission per distinct vendor on the order.
// Accrual is idempotent per order: if records already exist, nothing is
// written.
func (c *Calculator) Accrue(ctx context.Context, o *order.Order) error {
	existing, err := c.repo.FindByOrder(ctx, o.ID)
	if err != nil {
		return errors.Wrap(err, "find existing commissions")
	}
	if len(existing) > 0 {
		return nil
	}

	now := c.now()
	for _, vendorID := range o.Vendors() {
		itemsTotal, err := o.VendorItemsTotal(vendorID)
		if err != nil {
			return errors.Wrapf(err, "items total for vendor %s", vendorID)
		}

		rate, err := c.rates.RateFor(ctx, vendorID)
		if err != nil {
			return errors.Wrapf(err, "rate for vendor %s", vendorID)
		}

		fee, err := itemsTotal.Mul(rate)
		if err != nil {
			return errors.Wrap(err, "compute platform fee")
		}
		amount, err := itemsTotal.Sub(fee)
		if err != nil {
			return errors.Wrap(err, "compute vendor amount")
		}

		vc := &VendorCommission{
			ID:               uuid.New().String(),
			VendorID:         vendorID,
			OrderID:          o.ID,
			OrderItemsAmount: itemsTotal,
			Rate:             rate,
			PlatformFee:      fee,
			CommissionAmount: amount,
			Status:           StatusPending,
			AccruedAt:        now,
		}
		if err := c.repo.Create(ctx, vc); err != nil {
			return errors.Wrapf(err, "create commission for vendor %s", vendorID)
		}
	}
	return nil
}

// Approve moves a pending commission to approved.
func (c *Calculator) Approve(ctx context.Context, id string) (*VendorCommission, error) {
	return c.advance(ctx, id, StatusApproved)
}

// MarkPaid moves an approved commission to paid.
func (c *Calculator) MarkPaid(ctx context.Context, id string) (*VendorCommission, error) {
	return c.advance(ctx, id, StatusPaid)
}

// Cancel voids a commission that has not been paid out.
func (c *Calculator) Cancel(ctx context.Context, id string) (*VendorCommission, error) {
	return c.advance(ctx, id, StatusCancelled)
}

func (c *Calculator) advance(ctx context.Context, id string, next Status) (*VendorCommission, error) {
	vc, err := c.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := vc.Transition(next); err != nil {
		return nil, err
	}
	if err := c.repo.Save(ctx, vc); err != nil {
		return nil, errors.Wrap(err, "save commission")
	}
	return vc, nil
}
