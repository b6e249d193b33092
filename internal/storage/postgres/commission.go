package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/vendora/internal/domain/commission"
	"github.com/xenking/vendora/internal/domain/money"
)

const (
	createCommissionSQL = `INSERT INTO vendor_commissions (id, vendor_id, order_id,
		order_items_amount, rate, platform_fee, commission_amount, currency, status, accrued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	getCommissionSQL = `SELECT id, vendor_id, order_id, order_items_amount, rate,
		platform_fee, commission_amount, currency, status, accrued_at
		FROM vendor_commissions WHERE id = $1`

	commissionsByOrderSQL = `SELECT id, vendor_id, order_id, order_items_amount, rate,
		platform_fee, commission_amount, currency, status, accrued_at
		FROM vendor_commissions WHERE order_id = $1 ORDER BY vendor_id`

	commissionsByVendorSQL = `SELECT id, vendor_id, order_id, order_items_amount, rate,
		platform_fee, commission_amount, currency, status, accrued_at
		FROM vendor_commissions WHERE vendor_id = $1 AND status = $2 ORDER BY accrued_at`

	saveCommissionSQL = `UPDATE vendor_commissions SET status = $2 WHERE id = $1`

	vendorRateSQL = `SELECT rate FROM vendor_rates WHERE vendor_id = $1`

	setVendorRateSQL = `INSERT INTO vendor_rates (vendor_id, rate) VALUES ($1, $2)
		ON CONFLICT (vendor_id) DO UPDATE SET rate = EXCLUDED.rate`
)

var _ commission.Repository = (*CommissionRepository)(nil)

// CommissionRepository implements commission.Repository backed by
// PostgreSQL.
type CommissionRepository struct {
	pool *pgxpool.Pool
}

// NewCommissionRepository returns a CommissionRepository that uses the given
// pool.
func NewCommissionRepository(pool *pgxpool.Pool) *CommissionRepository {
	return &CommissionRepository{pool: pool}
}

// Create persists a new vendor commission.
func (r *CommissionRepository) Create(ctx context.Context, vc *commission.VendorCommission) error {
	_, err := r.pool.Exec(ctx, createCommissionSQL,
		vc.ID, vc.VendorID, vc.OrderID,
		vc.OrderItemsAmount.Amount(), vc.Rate,
		vc.PlatformFee.Amount(), vc.CommissionAmount.Amount(),
		vc.OrderItemsAmount.Currency(), string(vc.Status), vc.AccruedAt,
	)
	if err != nil {
		return fmt.Errorf("creating commission %q: %w", vc.ID, err)
	}
	return nil
}

// Get loads a commission by ID. Returns commission.ErrNotFound when it does
// not exist.
func (r *CommissionRepository) Get(ctx context.Context, id string) (*commission.VendorCommission, error) {
	rows, err := r.pool.Query(ctx, getCommissionSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting commission %q: %w", id, err)
	}

	vc, err := pgx.CollectExactlyOneRow(rows, scanCommission)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, commission.ErrNotFound
		}
		return nil, fmt.Errorf("getting commission %q: %w", id, err)
	}
	return &vc, nil
}

// FindByOrder returns all commissions accrued for the order.
func (r *CommissionRepository) FindByOrder(ctx context.Context, orderID string) ([]commission.VendorCommission, error) {
	rows, err := r.pool.Query(ctx, commissionsByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing commissions for order %q: %w", orderID, err)
	}

	out, err := pgx.CollectRows(rows, scanCommission)
	if err != nil {
		return nil, fmt.Errorf("listing commissions for order %q: %w", orderID, err)
	}
	return out, nil
}

// FindByVendor returns the vendor's commissions in the given status.
func (r *CommissionRepository) FindByVendor(ctx context.Context, vendorID string, status commission.Status) ([]commission.VendorCommission, error) {
	rows, err := r.pool.Query(ctx, commissionsByVendorSQL, vendorID, string(status))
	if err != nil {
		return nil, fmt.Errorf("listing commissions for vendor %q: %w", vendorID, err)
	}

	out, err := pgx.CollectRows(rows, scanCommission)
	if err != nil {
		return nil, fmt.Errorf("listing commissions for vendor %q: %w", vendorID, err)
	}
	return out, nil
}

// Save writes the commission's payout status back.
func (r *CommissionRepository) Save(ctx context.Context, vc *commission.VendorCommission) error {
	tag, err := r.pool.Exec(ctx, saveCommissionSQL, vc.ID, string(vc.Status))
	if err != nil {
		return fmt.Errorf("saving commission %q: %w", vc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return commission.ErrNotFound
	}
	return nil
}

func scanCommission(row pgx.CollectableRow) (commission.VendorCommission, error) {
	var (
		vc                    commission.VendorCommission
		itemsAmount, fee, amt decimal.Decimal
		currency, status      string
	)
	err := row.Scan(
		&vc.ID, &vc.VendorID, &vc.OrderID, &itemsAmount, &vc.Rate,
		&fee, &amt, &currency, &status, &vc.AccruedAt,
	)
	if err != nil {
		return commission.VendorCommission{}, err
	}

	vc.Status = commission.Status(status)
	for dst, src := range map[*money.Money]decimal.Decimal{
		&vc.OrderItemsAmount: itemsAmount,
		&vc.PlatformFee:      fee,
		&vc.CommissionAmount: amt,
	} {
		m, err := money.New(src, currency)
		if err != nil {
			return commission.VendorCommission{}, fmt.Errorf("money field of commission %q: %w", vc.ID, err)
		}
		*dst = m
	}
	return vc, nil
}

var _ commission.RateProvider = (*VendorRates)(nil)

// VendorRates resolves per-vendor commission rates from the vendor_rates
// table, falling back to a default rate for vendors without an override.
type VendorRates struct {
	pool        *pgxpool.Pool
	defaultRate decimal.Decimal
}

// NewVendorRates returns a VendorRates provider with the given fallback.
func NewVendorRates(pool *pgxpool.Pool, defaultRate decimal.Decimal) *VendorRates {
	return &VendorRates{pool: pool, defaultRate: defaultRate}
}

// RateFor returns the vendor's commission rate.
func (v *VendorRates) RateFor(ctx context.Context, vendorID string) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := v.pool.QueryRow(ctx, vendorRateSQL, vendorID).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return v.defaultRate, nil
		}
		return decimal.Decimal{}, fmt.Errorf("rate for vendor %q: %w", vendorID, err)
	}
	return rate, nil
}

// SetRate stores a per-vendor rate override.
func (v *VendorRates) SetRate(ctx context.Context, vendorID string, rate decimal.Decimal) error {
	if _, err := v.pool.Exec(ctx, setVendorRateSQL, vendorID, rate); err != nil {
		return fmt.Errorf("setting rate for vendor %q: %w", vendorID, err)
	}
	return nil
}
