// Package catalog defines the read-side capability the checkout core uses
// to look at products. The catalog itself (search, categories, media) is an
// external collaborator; only the snapshot contract lives here.
package catalog

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/vendora/internal/domain/money"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("catalog: product not found")

// Snapshot is the point-in-time view of a product used for pricing and
// availability checks. Prices are always re-read from a fresh snapshot at
// order creation; cart-cached amounts are never trusted.
type Snapshot struct {
	ProductID       string
	VendorID        string
	Name            string
	SKU             string
	Price           money.Money
	Category        string
	Available       int
	TrackInventory  bool
	AllowBackorders bool
}

// Provider resolves product snapshots.
type Provider interface {
	GetProductSnapshot(ctx context.Context, productID string) (*Snapshot, error)
}
