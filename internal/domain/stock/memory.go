package stock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type reservationState struct {
	Reservation
	committed bool
	released  bool
}

// MemoryLedger is an in-process Ledger implementation. A single mutex
// linearizes all reserve/commit/release operations, which is sufficient for
// one process; the postgres implementation covers multi-worker deployments.
type MemoryLedger struct {
	ttl time.Duration
	now func() time.Time

	mu           sync.Mutex
	entries      map[string]*Entry
	reservations map[string]*reservationState
}

// NewMemoryLedger creates an empty ledger. Reservations not committed or
// released within ttl are reclaimed by Sweep. A zero ttl disables expiry.
func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	return &MemoryLedger{
		ttl:          ttl,
		now:          time.Now,
		entries:      make(map[string]*Entry),
		reservations: make(map[string]*reservationState),
	}
}

// Enroll registers a product entry, replacing any previous entry for the
// same product.
func (l *MemoryLedger) Enroll(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := e
	l.entries[e.ProductID] = &entry
}

// Retire soft-retires a product: existing reservations stay valid, new
// reservations fail with ErrProductRetired. The entry is never deleted.
func (l *MemoryLedger) Retire(productID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[productID]
	if !ok {
		return ErrUnknownProduct
	}
	e.Retired = true
	return nil
}

// Snapshot returns a copy of the entry for inspection.
func (l *MemoryLedger) Snapshot(productID string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[productID]
	if !ok {
		return Entry{}, ErrUnknownProduct
	}
	return *e, nil
}

// Reserve atomically checks availability and increments the reserved count.
func (l *MemoryLedger) Reserve(_ context.Context, productID string, qty int) (Reservation, error) {
	if qty <= 0 {
		return Reservation{}, ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[productID]
	if !ok {
		return Reservation{}, ErrUnknownProduct
	}
	if e.Retired {
		return Reservation{}, ErrProductRetired
	}
	if e.TrackInventory && !e.AllowBackorders && qty > e.Reservable() {
		return Reservation{}, &InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: e.Reservable(),
		}
	}

	e.Reserved += qty

	r := Reservation{
		Token:     uuid.New().String(),
		ProductID: productID,
		Qty:       qty,
	}
	if l.ttl > 0 {
		r.ExpiresAt = l.now().Add(l.ttl)
	}
	l.reservations[r.Token] = &reservationState{Reservation: r}

	return r, nil
}

// Commit converts a reservation into a permanent deduction.
func (l *MemoryLedger) Commit(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.reservations[token]
	if !ok {
		return ErrUnknownReservation
	}
	if s.committed || s.released {
		return nil
	}

	e := l.entries[s.ProductID]
	e.Available -= s.Qty
	e.Reserved -= s.Qty
	if e.Available < 0 {
		// Backordered commit: available never goes negative, the shortfall
		// stays visible as zero availability.
		e.Available = 0
	}
	if e.Reserved < 0 {
		e.Reserved = 0
	}
	s.committed = true

	return nil
}

// Release cancels a reservation without deducting available stock.
func (l *MemoryLedger) Release(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.reservations[token]
	if !ok {
		return ErrUnknownReservation
	}
	if s.committed || s.released {
		return nil
	}

	e := l.entries[s.ProductID]
	e.Reserved -= s.Qty
	if e.Reserved < 0 {
		e.Reserved = 0
	}
	s.released = true

	return nil
}

// IsLowStock reports whether the product is at or below its threshold.
func (l *MemoryLedger) IsLowStock(_ context.Context, productID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[productID]
	if !ok {
		return false, ErrUnknownProduct
	}
	return e.LowStock(), nil
}

// Sweep releases all reservations whose TTL elapsed without commit or
// release. It returns the number of reservations reclaimed.
func (l *MemoryLedger) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	reclaimed := 0
	for _, s := range l.reservations {
		if s.committed || s.released {
			continue
		}
		if s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt) {
			continue
		}
		e := l.entries[s.ProductID]
		e.Reserved -= s.Qty
		if e.Reserved < 0 {
			e.Reserved = 0
		}
		s.released = true
		reclaimed++
	}
	return reclaimed
}

// StartSweeper runs Sweep at the given interval until ctx is cancelled.
func (l *MemoryLedger) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}
