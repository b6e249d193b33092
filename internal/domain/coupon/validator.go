package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// RepoValidator implements Validator by looking up coupon rules from a
// Repository and pricing them via Apply. Validation never mutates usage
// counters; Redeem records consumption once an order actually commits.
type RepoValidator struct {
	repo     Repository
	currency string
	now      func() time.Time
}

// NewRepoValidator creates a RepoValidator pricing discounts in the given
// currency.
func NewRepoValidator(repo Repository, currency string) *RepoValidator {
	return &RepoValidator{repo: repo, currency: currency, now: time.Now}
}

// Validate checks the rule's activation, time window, and usage limits,
// then prices it against the items.
func (v *RepoValidator) Validate(ctx context.Context, code string, items []Item, customerRef string) (*Discount, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !rule.Active {
		return nil, ErrInvalidCoupon
	}

	now := v.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrCouponExpired
	}

	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrCouponUsageLimitReached
	}

	if rule.PerCustomerLimit > 0 && customerRef != "" {
		uses, err := v.repo.CustomerUses(ctx, code, customerRef)
		if err != nil {
			return nil, errors.Wrap(err, "count customer uses")
		}
		if uses >= rule.PerCustomerLimit {
			return nil, &NotApplicableError{
				Code:   code,
				Reason: "per-customer usage limit reached",
			}
		}
	}

	d, err := Apply(rule, items, v.currency)
	if err != nil {
		return nil, err
	}

	return &d, nil
}

// Redeem records a consumed discount against both usage counters.
func (v *RepoValidator) Redeem(ctx context.Context, code, customerRef string) error {
	if err := v.repo.RecordRedemption(ctx, code, customerRef); err != nil {
		return errors.Wrap(err, "record redemption")
	}
	return nil
}
