package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/vendora/internal/domain/stock"
)

const (
	lockStockEntrySQL = `SELECT s.available, s.reserved, s.threshold,
		p.track_inventory, p.allow_backorders, p.retired
		FROM stock_entries s
		JOIN products p ON p.id = s.product_id
		WHERE s.product_id = $1
		FOR UPDATE OF s`

	insertReservationSQL = `INSERT INTO stock_reservations (token, product_id, quantity, expires_at)
		VALUES ($1, $2, $3, $4)`

	addReservedSQL = `UPDATE stock_entries SET reserved = reserved + $2 WHERE product_id = $1`

	lockReservationSQL = `SELECT product_id, quantity, committed, released
		FROM stock_reservations WHERE token = $1 FOR UPDATE`

	commitStockSQL = `UPDATE stock_entries
		SET available = GREATEST(available - $2, 0),
		    reserved = GREATEST(reserved - $2, 0)
		WHERE product_id = $1`

	releaseStockSQL = `UPDATE stock_entries
		SET reserved = GREATEST(reserved - $2, 0)
		WHERE product_id = $1`

	markCommittedSQL = `UPDATE stock_reservations SET committed = TRUE WHERE token = $1`
	markReleasedSQL  = `UPDATE stock_reservations SET released = TRUE WHERE token = $1`

	lowStockSQL = `SELECT available <= threshold FROM stock_entries WHERE product_id = $1`

	upsertStockEntrySQL = `INSERT INTO stock_entries (product_id, available, reserved, threshold)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (product_id) DO UPDATE SET
			available = EXCLUDED.available,
			threshold = EXCLUDED.threshold`

	expiredReservationsSQL = `SELECT token FROM stock_reservations
		WHERE NOT committed AND NOT released
		AND expires_at IS NOT NULL AND expires_at <= now()`
)

var _ stock.Ledger = (*StockLedger)(nil)

// StockLedger implements stock.Ledger backed by PostgreSQL. Row locks on
// stock_entries serialize concurrent reservations for the same product
// across processes.
type StockLedger struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewStockLedger returns a StockLedger that uses the given pool.
// Reservations not committed or released within ttl are reclaimed by
// ReleaseExpired. A zero ttl disables expiry.
func NewStockLedger(pool *pgxpool.Pool, ttl time.Duration) *StockLedger {
	return &StockLedger{pool: pool, ttl: ttl}
}

// Enroll creates or resets the stock entry for a product.
func (l *StockLedger) Enroll(ctx context.Context, productID string, available, threshold int) error {
	_, err := l.pool.Exec(ctx, upsertStockEntrySQL, productID, available, threshold)
	if err != nil {
		return fmt.Errorf("enrolling stock for product %q: %w", productID, err)
	}
	return nil
}

// Reserve atomically checks availability and increments the reserved count
// under a row lock.
func (l *StockLedger) Reserve(ctx context.Context, productID string, qty int) (stock.Reservation, error) {
	if qty <= 0 {
		return stock.Reservation{}, stock.ErrInvalidQuantity
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return stock.Reservation{}, fmt.Errorf("beginning reserve tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var (
		available, reserved, threshold           int
		trackInventory, allowBackorders, retired bool
	)
	err = tx.QueryRow(ctx, lockStockEntrySQL, productID).Scan(
		&available, &reserved, &threshold,
		&trackInventory, &allowBackorders, &retired,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stock.Reservation{}, stock.ErrUnknownProduct
		}
		return stock.Reservation{}, fmt.Errorf("locking stock for product %q: %w", productID, err)
	}
	if retired {
		return stock.Reservation{}, stock.ErrProductRetired
	}

	reservable := available - reserved
	if trackInventory && !allowBackorders && qty > reservable {
		return stock.Reservation{}, &stock.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: reservable,
		}
	}

	r := stock.Reservation{
		Token:     uuid.New().String(),
		ProductID: productID,
		Qty:       qty,
	}
	var expiresAt *time.Time
	if l.ttl > 0 {
		t := time.Now().Add(l.ttl)
		expiresAt = &t
		r.ExpiresAt = t
	}

	if _, err := tx.Exec(ctx, insertReservationSQL, r.Token, productID, qty, expiresAt); err != nil {
		return stock.Reservation{}, fmt.Errorf("inserting reservation for product %q: %w", productID, err)
	}
	if _, err := tx.Exec(ctx, addReservedSQL, productID, qty); err != nil {
		return stock.Reservation{}, fmt.Errorf("reserving stock for product %q: %w", productID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return stock.Reservation{}, fmt.Errorf("committing reserve tx: %w", err)
	}
	return r, nil
}

// Commit converts a reservation into a permanent deduction. Committing an
// already-settled reservation is a no-op.
func (l *StockLedger) Commit(ctx context.Context, token string) error {
	return l.settle(ctx, token, commitStockSQL, markCommittedSQL)
}

// Release cancels a reservation without deducting available stock.
// Releasing an already-settled reservation is a no-op.
func (l *StockLedger) Release(ctx context.Context, token string) error {
	return l.settle(ctx, token, releaseStockSQL, markReleasedSQL)
}

func (l *StockLedger) settle(ctx context.Context, token, stockSQL, markSQL string) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning settle tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var (
		productID           string
		qty                 int
		committed, released bool
	)
	err = tx.QueryRow(ctx, lockReservationSQL, token).Scan(&productID, &qty, &committed, &released)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stock.ErrUnknownReservation
		}
		return fmt.Errorf("locking reservation %q: %w", token, err)
	}
	if committed || released {
		return nil
	}

	if _, err := tx.Exec(ctx, stockSQL, productID, qty); err != nil {
		return fmt.Errorf("settling stock for product %q: %w", productID, err)
	}
	if _, err := tx.Exec(ctx, markSQL, token); err != nil {
		return fmt.Errorf("marking reservation %q: %w", token, err)
	}
	return tx.Commit(ctx)
}

// IsLowStock reports whether the product is at or below its threshold.
func (l *StockLedger) IsLowStock(ctx context.Context, productID string) (bool, error) {
	var low bool
	err := l.pool.QueryRow(ctx, lowStockSQL, productID).Scan(&low)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, stock.ErrUnknownProduct
		}
		return false, fmt.Errorf("checking low stock for product %q: %w", productID, err)
	}
	return low, nil
}

// ReleaseExpired reclaims reservations whose TTL elapsed without commit or
// release. It returns the number of reservations reclaimed.
func (l *StockLedger) ReleaseExpired(ctx context.Context) (int, error) {
	rows, err := l.pool.Query(ctx, expiredReservationsSQL)
	if err != nil {
		return 0, fmt.Errorf("listing expired reservations: %w", err)
	}
	tokens, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("collecting expired reservations: %w", err)
	}

	reclaimed := 0
	for _, token := range tokens {
		if err := l.Release(ctx, token); err != nil {
			return reclaimed, errors.Wrapf(err, "release expired reservation %s", token)
		}
		reclaimed++
	}
	return reclaimed, nil
}

// StartSweeper runs ReleaseExpired at the given interval until ctx is
// cancelled. Sweep failures are reported through onError and do not stop
// the loop.
func (l *StockLedger) StartSweeper(ctx context.Context, interval time.Duration, onError func(error)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := l.ReleaseExpired(ctx); err != nil && onError != nil {
					onError(err)
				}
			}
		}
	}()
}
