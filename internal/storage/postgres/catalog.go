package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/vendora/internal/domain/catalog"
	"github.com/xenking/vendora/internal/domain/money"
)

const (
	getProductSnapshotSQL = `SELECT p.id, p.vendor_id, p.name, p.sku, p.category,
		p.price, p.currency, p.track_inventory, p.allow_backorders,
		COALESCE(s.available - s.reserved, 0)
		FROM products p
		LEFT JOIN stock_entries s ON s.product_id = p.id
		WHERE p.id = $1 AND NOT p.retired`

	upsertProductSQL = `INSERT INTO products (id, vendor_id, name, sku, category,
		price, currency, track_inventory, allow_backorders)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			vendor_id = EXCLUDED.vendor_id,
			name = EXCLUDED.name,
			sku = EXCLUDED.sku,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			track_inventory = EXCLUDED.track_inventory,
			allow_backorders = EXCLUDED.allow_backorders`

	retireProductSQL = `UPDATE products SET retired = TRUE WHERE id = $1`
)

var _ catalog.Provider = (*ProductRepository)(nil)

// ProductRepository implements catalog.Provider backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetProductSnapshot returns the live pricing and availability snapshot for
// a product. Returns catalog.ErrNotFound for unknown or retired products.
func (r *ProductRepository) GetProductSnapshot(ctx context.Context, productID string) (*catalog.Snapshot, error) {
	rows, err := r.pool.Query(ctx, getProductSnapshotSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", productID, err)
	}

	snap, err := pgx.CollectExactlyOneRow(rows, scanSnapshot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", productID, err)
	}
	return &snap, nil
}

// Upsert inserts or replaces a product row. Used by seeding.
func (r *ProductRepository) Upsert(ctx context.Context, snap *catalog.Snapshot) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		snap.ProductID, snap.VendorID, snap.Name, snap.SKU, snap.Category,
		snap.Price.Amount(), snap.Price.Currency(),
		snap.TrackInventory, snap.AllowBackorders,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", snap.ProductID, err)
	}
	return nil
}

// Retire hides a product from snapshots without deleting its rows.
func (r *ProductRepository) Retire(ctx context.Context, productID string) error {
	_, err := r.pool.Exec(ctx, retireProductSQL, productID)
	if err != nil {
		return fmt.Errorf("retiring product %q: %w", productID, err)
	}
	return nil
}

func scanSnapshot(row pgx.CollectableRow) (catalog.Snapshot, error) {
	var (
		snap     catalog.Snapshot
		price    decimal.Decimal
		currency string
	)
	err := row.Scan(
		&snap.ProductID, &snap.VendorID, &snap.Name, &snap.SKU, &snap.Category,
		&price, &currency, &snap.TrackInventory, &snap.AllowBackorders,
		&snap.Available,
	)
	if err != nil {
		return catalog.Snapshot{}, err
	}

	m, err := money.New(price, currency)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("price for product %q: %w", snap.ProductID, err)
	}
	snap.Price = m
	return snap, nil
}
