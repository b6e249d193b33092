package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/vendora/internal/domain/coupon"
	"github.com/xenking/vendora/internal/domain/money"
)

const (
	getCouponByCodeSQL = `SELECT code, coupon_type, value, max_discount, min_amount, currency,
		products, categories, valid_from, valid_until,
		max_uses, uses, per_customer_limit, active, description
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	customerUsesSQL = `SELECT COUNT(*) FROM coupon_redemptions
		WHERE UPPER(code) = UPPER($1) AND customer_ref = $2`

	recordRedemptionSQL = `INSERT INTO coupon_redemptions (code, customer_ref, redeemed_at)
		VALUES ($1, $2, now())`

	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1 WHERE UPPER(code) = UPPER($1)`

	upsertCouponSQL = `INSERT INTO coupons (code, coupon_type, value, max_discount, min_amount,
		currency, products, categories, valid_from, valid_until,
		max_uses, uses, per_customer_limit, active, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (code) DO UPDATE SET
			coupon_type = EXCLUDED.coupon_type,
			value = EXCLUDED.value,
			max_discount = EXCLUDED.max_discount,
			min_amount = EXCLUDED.min_amount,
			currency = EXCLUDED.currency,
			products = EXCLUDED.products,
			categories = EXCLUDED.categories,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses,
			per_customer_limit = EXCLUDED.per_customer_limit,
			active = EXCLUDED.active,
			description = EXCLUDED.description`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// CustomerUses counts how many times the customer has redeemed the coupon.
func (r *CouponRepository) CustomerUses(ctx context.Context, code, customerRef string) (int, error) {
	var uses int
	err := r.pool.QueryRow(ctx, customerUsesSQL, code, customerRef).Scan(&uses)
	if err != nil {
		return 0, fmt.Errorf("counting redemptions for coupon %q: %w", code, err)
	}
	return uses, nil
}

// RecordRedemption appends a redemption row and bumps the global counter in
// one transaction.
func (r *CouponRepository) RecordRedemption(ctx context.Context, code, customerRef string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning redemption tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, recordRedemptionSQL, code, customerRef); err != nil {
		return fmt.Errorf("recording redemption for coupon %q: %w", code, err)
	}
	if _, err := tx.Exec(ctx, incrementCouponUsesSQL, code); err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
	}
	return tx.Commit(ctx)
}

// Upsert inserts or replaces a coupon rule. Used by the promo ingest tool
// and seeding.
func (r *CouponRepository) Upsert(ctx context.Context, rule *coupon.Rule, currency string) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		rule.Code, string(rule.Type), rule.Value,
		rule.MaxDiscount.Amount(), rule.MinAmount.Amount(), currency,
		rule.Products, rule.Categories,
		rule.ValidFrom, rule.ValidUntil,
		rule.MaxUses, rule.Uses, rule.PerCustomerLimit,
		rule.Active, rule.Description,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", rule.Code, err)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule        coupon.Rule
		couponType  string
		value       decimal.Decimal
		maxDiscount decimal.Decimal
		minAmount   decimal.Decimal
		currency    string
		validFrom   *time.Time
		validUntil  *time.Time
	)
	err := row.Scan(
		&rule.Code, &couponType, &value, &maxDiscount, &minAmount, &currency,
		&rule.Products, &rule.Categories, &validFrom, &validUntil,
		&rule.MaxUses, &rule.Uses, &rule.PerCustomerLimit,
		&rule.Active, &rule.Description,
	)
	if err != nil {
		return coupon.Rule{}, err
	}

	rule.Type = coupon.Type(couponType)
	rule.Value = value
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	if !maxDiscount.IsZero() {
		m, err := money.New(maxDiscount, currency)
		if err != nil {
			return coupon.Rule{}, fmt.Errorf("max discount for coupon %q: %w", rule.Code, err)
		}
		rule.MaxDiscount = m
	}
	if !minAmount.IsZero() {
		m, err := money.New(minAmount, currency)
		if err != nil {
			return coupon.Rule{}, fmt.Errorf("min amount for coupon %q: %w", rule.Code, err)
		}
		rule.MinAmount = m
	}
	return rule, nil
}
