// Package cart implements the mutable pre-order basket: line aggregation,
// availability-checked quantity updates, coupon application, and running
// totals. A cart converts to an order exactly once and is read-only after.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/vendora/internal/domain/money"
)

// Status is the cart lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusAbandoned Status = "abandoned"
	StatusConverted Status = "converted"
)

var (
	// ErrNotFound is returned when a requested cart does not exist.
	ErrNotFound = errors.New("cart: not found")
	// ErrConverted is returned when mutating a cart that already became an
	// order.
	ErrConverted = errors.New("cart: already converted")
	// ErrExpired is returned when mutating a cart past its expiry.
	ErrExpired = errors.New("cart: expired")
	// ErrConcurrentModification is returned by the repository when a save
	// loses an optimistic-concurrency race. Callers retry against fresh
	// state.
	ErrConcurrentModification = errors.New("cart: concurrent modification")
)

// LineNotFoundError identifies a missing cart line.
type LineNotFoundError struct {
	LineID string
}

func (e *LineNotFoundError) Error() string {
	return fmt.Sprintf("cart: line %s not found", e.LineID)
}

// Line is a single product entry in a cart. UnitPrice is a snapshot taken
// at add-time and is display-only; orders re-price from live snapshots.
type Line struct {
	ID          string
	ProductID   string
	VendorID    string
	Quantity    int
	UnitPrice   money.Money
	ProductName string
	ProductSKU  string
	Category    string
}

// Cart aggregates lines for one owner. Product IDs are unique within a
// cart; adding an existing product merges quantities.
type Cart struct {
	ID         string
	OwnerRef   string
	Currency   string
	Lines      []Line
	CouponCode string
	Status     Status
	ExpiresAt  time.Time
	Version    int64
}

// Active reports whether the cart can still be mutated at the given time.
func (c *Cart) Active(now time.Time) bool {
	return c.Status == StatusActive && (c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt))
}

// FindLine returns the line with the given ID, or nil.
func (c *Cart) FindLine(lineID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return &c.Lines[i]
		}
	}
	return nil
}

// FindProductLine returns the line holding the given product, or nil.
func (c *Cart) FindProductLine(productID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

// Subtotal sums unit price × quantity over all lines.
func (c *Cart) Subtotal() (money.Money, error) {
	sum := money.Zero(c.Currency)
	for _, line := range c.Lines {
		lt, err := line.UnitPrice.MulInt(int64(line.Quantity))
		if err != nil {
			return money.Money{}, errors.Wrapf(err, "line total for product %s", line.ProductID)
		}
		sum, err = sum.Add(lt)
		if err != nil {
			return money.Money{}, errors.Wrap(err, "accumulate subtotal")
		}
	}
	return sum, nil
}

// MarkConverted transitions the cart to converted. The transition happens
// exactly once; converted carts are read-only.
func (c *Cart) MarkConverted() error {
	if c.Status == StatusConverted {
		return ErrConverted
	}
	c.Status = StatusConverted
	return nil
}

// removeLine deletes the line with the given ID, preserving order.
func (c *Cart) removeLine(lineID string) bool {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// Repository defines persistence for carts. Save must reject writes whose
// Version does not match the stored aggregate with
// ErrConcurrentModification.
type Repository interface {
	Create(ctx context.Context, c *Cart) error
	Get(ctx context.Context, id string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	// ReapExpired marks active carts past their expiry as abandoned and
	// returns how many were reclaimed.
	ReapExpired(ctx context.Context, now time.Time) (int, error)
}
