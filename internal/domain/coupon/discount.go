package coupon

import (
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/vendora/internal/domain/money"
)

// Apply prices the rule against the given items. Eligibility conditions
// (minimum amount, applicability lists) are checked here; temporal and
// usage conditions belong to the Validator.
func Apply(rule *Rule, items []Item, currency string) (Discount, error) {
	subtotal, err := itemsSubtotal(items, currency)
	if err != nil {
		return Discount{}, err
	}

	if !rule.MinAmount.IsZero() {
		c, err := subtotal.Cmp(rule.MinAmount)
		if err != nil {
			return Discount{}, errors.Wrap(err, "compare minimum amount")
		}
		if c < 0 {
			return Discount{}, &NotApplicableError{
				Code:   rule.Code,
				Reason: "cart subtotal below minimum amount " + rule.MinAmount.String(),
			}
		}
	}

	if !anyItemEligible(rule, items) {
		return Discount{}, &NotApplicableError{
			Code:   rule.Code,
			Reason: "no eligible products in cart",
		}
	}

	switch rule.Type {
	case TypePercentage:
		return applyPercentage(rule, subtotal)
	case TypeFixed:
		return applyFixed(rule, subtotal, currency)
	case TypeFreeShipping:
		return Discount{
			Amount:       money.Zero(currency),
			FreeShipping: true,
			Description:  rule.Description,
		}, nil
	default:
		return Discount{}, errors.Errorf("unsupported coupon type: %q", rule.Type)
	}
}

func applyPercentage(rule *Rule, subtotal money.Money) (Discount, error) {
	amount, err := subtotal.Percentage(rule.Value)
	if err != nil {
		return Discount{}, errors.Wrap(err, "percentage discount")
	}

	if !rule.MaxDiscount.IsZero() {
		amount, err = money.Min(amount, rule.MaxDiscount)
		if err != nil {
			return Discount{}, errors.Wrap(err, "cap discount")
		}
	}

	return Discount{Amount: amount, Description: rule.Description}, nil
}

func applyFixed(rule *Rule, subtotal money.Money, currency string) (Discount, error) {
	value, err := money.New(rule.Value, currency)
	if err != nil {
		return Discount{}, errors.Wrap(err, "fixed discount value")
	}

	amount, err := money.Min(value, subtotal)
	if err != nil {
		return Discount{}, errors.Wrap(err, "cap at subtotal")
	}

	return Discount{Amount: amount, Description: rule.Description}, nil
}

// anyItemEligible reports whether at least one item matches the rule's
// applicability lists. Empty lists match everything.
func anyItemEligible(rule *Rule, items []Item) bool {
	if len(rule.Products) == 0 && len(rule.Categories) == 0 {
		return true
	}
	for _, item := range items {
		if slices.Contains(rule.Products, item.ProductID) {
			return true
		}
		if slices.Contains(rule.Categories, item.Category) {
			return true
		}
	}
	return false
}

func itemsSubtotal(items []Item, currency string) (money.Money, error) {
	sum := money.Zero(currency)
	for _, item := range items {
		line, err := item.UnitPrice.MulInt(int64(item.Quantity))
		if err != nil {
			return money.Money{}, errors.Wrap(err, "line total")
		}
		sum, err = sum.Add(line)
		if err != nil {
			return money.Money{}, errors.Wrap(err, "accumulate subtotal")
		}
	}
	return sum, nil
}
