// Package stock tracks per-product available and reserved quantities and
// owns the reservation protocol: reserve, then either commit (permanent
// deduction) or release (compensation). Reservations carry a TTL so that
// abandoned checkouts return stock without operator intervention.
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrUnknownProduct is returned for products never enrolled in the ledger.
	ErrUnknownProduct = errors.New("stock: unknown product")
	// ErrUnknownReservation is returned for tokens the ledger has no record of.
	ErrUnknownReservation = errors.New("stock: unknown reservation token")
	// ErrProductRetired is returned when reserving against a soft-retired entry.
	ErrProductRetired = errors.New("stock: product retired")
	// ErrInvalidQuantity is returned for non-positive reservation quantities.
	ErrInvalidQuantity = errors.New("stock: quantity must be greater than 0")
)

// InsufficientStockError indicates a reservation could not be satisfied.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Entry is the ledger state for a single product.
//
// Invariants: Available >= 0 and Reserved >= 0 at all times. Reserved may
// exceed Available only when AllowBackorders is set.
type Entry struct {
	ProductID       string
	Available       int
	Reserved        int
	Threshold       int
	AllowBackorders bool
	TrackInventory  bool
	Retired         bool
}

// Reservable returns how many units can still be reserved.
func (e Entry) Reservable() int {
	return e.Available - e.Reserved
}

// LowStock reports whether the entry is at or below its threshold.
// Entries that do not track inventory are never low.
func (e Entry) LowStock() bool {
	return e.TrackInventory && e.Available <= e.Threshold
}

// Reservation is a pending, uncommitted stock deduction identified by an
// opaque token.
type Reservation struct {
	Token     string
	ProductID string
	Qty       int
	ExpiresAt time.Time
}

// Ledger is the stock reservation contract.
//
// Reserve must be linearized per product: of two concurrent reservations
// competing for the last unit, exactly one succeeds. Commit and Release are
// idempotent; repeating either for the same token is a no-op.
type Ledger interface {
	Reserve(ctx context.Context, productID string, qty int) (Reservation, error)
	Commit(ctx context.Context, token string) error
	Release(ctx context.Context, token string) error
	IsLowStock(ctx context.Context, productID string) (bool, error)
}
