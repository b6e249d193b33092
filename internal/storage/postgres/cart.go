package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/vendora/internal/domain/cart"
	"github.com/xenking/vendora/internal/domain/money"
)

const (
	createCartSQL = `INSERT INTO carts (id, owner_ref, currency, lines, coupon_code, status, expires_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)`

	getCartSQL = `SELECT id, owner_ref, currency, lines, coupon_code, status, expires_at, version
		FROM carts WHERE id = $1`

	saveCartSQL = `UPDATE carts
		SET lines = $2, coupon_code = $3, status = $4, expires_at = $5,
		    version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $6`

	reapExpiredCartsSQL = `UPDATE carts SET status = 'abandoned', updated_at = now()
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1`
)

// cartLineRow is the JSONB shape of a cart line. Money splits into an
// amount column and the cart-level currency.
type cartLineRow struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	VendorID    string          `json:"vendor_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Category    string          `json:"category"`
}

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Lines are
// stored as a JSONB document; the aggregate is always read and written
// whole, guarded by the version column.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Create persists a new cart with version 1.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	linesJSON, err := marshalCartLines(c.Lines)
	if err != nil {
		return fmt.Errorf("marshaling cart lines: %w", err)
	}

	var expiresAt *time.Time
	if !c.ExpiresAt.IsZero() {
		expiresAt = &c.ExpiresAt
	}

	_, err = r.pool.Exec(ctx, createCartSQL,
		c.ID, c.OwnerRef, c.Currency, linesJSON, c.CouponCode, string(c.Status), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("creating cart %q: %w", c.ID, err)
	}
	c.Version = 1
	return nil
}

// Get loads a cart by ID. Returns cart.ErrNotFound when it does not exist.
func (r *CartRepository) Get(ctx context.Context, id string) (*cart.Cart, error) {
	var (
		c         cart.Cart
		linesJSON []byte
		status    string
		expiresAt *time.Time
	)
	err := r.pool.QueryRow(ctx, getCartSQL, id).Scan(
		&c.ID, &c.OwnerRef, &c.Currency, &linesJSON, &c.CouponCode,
		&status, &expiresAt, &c.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", id, err)
	}

	c.Status = cart.Status(status)
	if expiresAt != nil {
		c.ExpiresAt = *expiresAt
	}
	c.Lines, err = unmarshalCartLines(linesJSON, c.Currency)
	if err != nil {
		return nil, fmt.Errorf("decoding lines of cart %q: %w", id, err)
	}
	return &c, nil
}

// Save writes the cart back, rejecting stale versions with
// cart.ErrConcurrentModification.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	linesJSON, err := marshalCartLines(c.Lines)
	if err != nil {
		return fmt.Errorf("marshaling cart lines: %w", err)
	}

	var expiresAt *time.Time
	if !c.ExpiresAt.IsZero() {
		expiresAt = &c.ExpiresAt
	}

	tag, err := r.pool.Exec(ctx, saveCartSQL,
		c.ID, linesJSON, c.CouponCode, string(c.Status), expiresAt, c.Version,
	)
	if err != nil {
		return fmt.Errorf("saving cart %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrConcurrentModification
	}
	c.Version++
	return nil
}

// ReapExpired marks active carts past their expiry as abandoned and returns
// how many were reclaimed.
func (r *CartRepository) ReapExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, reapExpiredCartsSQL, now)
	if err != nil {
		return 0, fmt.Errorf("reaping expired carts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func marshalCartLines(lines []cart.Line) ([]byte, error) {
	rows := make([]cartLineRow, len(lines))
	for i, l := range lines {
		rows[i] = cartLineRow{
			ID:          l.ID,
			ProductID:   l.ProductID,
			VendorID:    l.VendorID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice.Amount(),
			ProductName: l.ProductName,
			ProductSKU:  l.ProductSKU,
			Category:    l.Category,
		}
	}
	return json.Marshal(rows)
}

func unmarshalCartLines(data []byte, currency string) ([]cart.Line, error) {
	var rows []cartLineRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}

	lines := make([]cart.Line, len(rows))
	for i, row := range rows {
		price, err := money.New(row.UnitPrice, currency)
		if err != nil {
			return nil, fmt.Errorf("unit price of line %q: %w", row.ID, err)
		}
		lines[i] = cart.Line{
			ID:          row.ID,
			ProductID:   row.ProductID,
			VendorID:    row.VendorID,
			Quantity:    row.Quantity,
			UnitPrice:   price,
			ProductName: row.ProductName,
			ProductSKU:  row.ProductSKU,
			Category:    row.Category,
		}
	}
	return lines, nil
}
