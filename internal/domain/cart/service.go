package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/vendora/internal/domain/catalog"
	"github.com/xenking/vendora/internal/domain/coupon"
	"github.com/xenking/vendora/internal/domain/money"
	"github.com/xenking/vendora/internal/domain/pricing"
	"github.com/xenking/vendora/internal/domain/stock"
)

// Service encapsulates cart mutation logic. Every mutation loads the full
// aggregate, applies the change, and saves it back; lost updates surface as
// ErrConcurrentModification from the repository.
type Service struct {
	catalog  catalog.Provider
	coupons  coupon.Validator
	pricing  *pricing.Engine
	carts    Repository
	currency string
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates a cart Service. New carts expire after ttl of
// inactivity; a zero ttl disables expiry.
func NewService(
	catalogProvider catalog.Provider,
	coupons coupon.Validator,
	pricingEngine *pricing.Engine,
	carts Repository,
	currency string,
	ttl time.Duration,
) *Service {
	return &Service{
		catalog:  catalogProvider,
		coupons:  coupons,
		pricing:  pricingEngine,
		carts:    carts,
		currency: currency,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create opens an empty active cart for the given owner.
func (s *Service) Create(ctx context.Context, ownerRef string) (*Cart, error) {
	c := &Cart{
		ID:       uuid.New().String(),
		OwnerRef: ownerRef,
		Currency: s.currency,
		Status:   StatusActive,
	}
	if s.ttl > 0 {
		c.ExpiresAt = s.now().Add(s.ttl)
	}
	if err := s.carts.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return c, nil
}

// Get loads a cart by ID.
func (s *Service) Get(ctx context.Context, cartID string) (*Cart, error) {
	return s.carts.Get(ctx, cartID)
}

func (s *Service) loadMutable(ctx context.Context, cartID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusConverted {
		return nil, ErrConverted
	}
	if !c.Active(s.now()) {
		return nil, ErrExpired
	}
	return c, nil
}

// AddItem adds qty units of a product, merging into an existing line for
// the same product. Availability is checked against a live catalog
// snapshot for the merged quantity.
func (s *Service) AddItem(ctx context.Context, cartID, productID string, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, stock.ErrInvalidQuantity
	}

	c, err := s.loadMutable(ctx, cartID)
	if err != nil {
		return nil, err
	}

	snap, err := s.catalog.GetProductSnapshot(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot product %s", productID)
	}

	merged := qty
	if line := c.FindProductLine(productID); line != nil {
		merged += line.Quantity
	}
	if err := checkAvailability(snap, merged); err != nil {
		return nil, err
	}

	if line := c.FindProductLine(productID); line != nil {
		line.Quantity = merged
	} else {
		c.Lines = append(c.Lines, Line{
			ID:          uuid.New().String(),
			ProductID:   snap.ProductID,
			VendorID:    snap.VendorID,
			Quantity:    qty,
			UnitPrice:   snap.Price,
			ProductName: snap.Name,
			ProductSKU:  snap.SKU,
			Category:    snap.Category,
		})
	}

	s.touch(c)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// UpdateItemQuantity sets a line's quantity. A non-positive qty removes
// the line.
func (s *Service) UpdateItemQuantity(ctx context.Context, cartID, lineID string, qty int) (*Cart, error) {
	c, err := s.loadMutable(ctx, cartID)
	if err != nil {
		return nil, err
	}

	line := c.FindLine(lineID)
	if line == nil {
		return nil, &LineNotFoundError{LineID: lineID}
	}

	if qty <= 0 {
		c.removeLine(lineID)
	} else {
		snap, err := s.catalog.GetProductSnapshot(ctx, line.ProductID)
		if err != nil {
			return nil, errors.Wrapf(err, "snapshot product %s", line.ProductID)
		}
		if err := checkAvailability(snap, qty); err != nil {
			return nil, err
		}
		line.Quantity = qty
	}

	s.touch(c)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, lineID string) (*Cart, error) {
	c, err := s.loadMutable(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if !c.removeLine(lineID) {
		return nil, &LineNotFoundError{LineID: lineID}
	}

	s.touch(c)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// ApplyCoupon validates the code against current cart contents and stores
// it on success. The discount itself is recomputed at pricing time.
func (s *Service) ApplyCoupon(ctx context.Context, cartID, code string) (*Cart, error) {
	c, err := s.loadMutable(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if _, err := s.coupons.Validate(ctx, code, couponItems(c), c.OwnerRef); err != nil {
		return nil, err
	}

	c.CouponCode = code
	s.touch(c)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// ComputeTotals prices the cart for the given destination. Pure with
// respect to cart state: nothing is persisted.
func (s *Service) ComputeTotals(ctx context.Context, cartID string, dest pricing.Address, shippingMethod string) (pricing.Totals, error) {
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return pricing.Totals{}, err
	}

	// An empty cart prices to zero; the engine itself requires lines.
	if len(c.Lines) == 0 {
		zero := money.Zero(c.Currency)
		return pricing.Totals{Subtotal: zero, Tax: zero, Shipping: zero, Discount: zero, Total: zero}, nil
	}

	discount := pricing.DiscountInput{Amount: money.Zero(c.Currency)}
	if c.CouponCode != "" {
		d, err := s.coupons.Validate(ctx, c.CouponCode, couponItems(c), c.OwnerRef)
		if err != nil {
			return pricing.Totals{}, err
		}
		discount = pricing.DiscountInput{Amount: d.Amount, FreeShipping: d.FreeShipping}
	}

	return s.pricing.Compute(ctx, pricingLines(c), dest, shippingMethod, discount)
}

func (s *Service) touch(c *Cart) {
	if s.ttl > 0 {
		c.ExpiresAt = s.now().Add(s.ttl)
	}
}

func checkAvailability(snap *catalog.Snapshot, qty int) error {
	if !snap.TrackInventory || snap.AllowBackorders {
		return nil
	}
	if qty > snap.Available {
		return &stock.InsufficientStockError{
			ProductID: snap.ProductID,
			Requested: qty,
			Available: snap.Available,
		}
	}
	return nil
}

func couponItems(c *Cart) []coupon.Item {
	items := make([]coupon.Item, len(c.Lines))
	for i, line := range c.Lines {
		items[i] = coupon.Item{
			ProductID: line.ProductID,
			Category:  line.Category,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		}
	}
	return items
}

func pricingLines(c *Cart) []pricing.Line {
	lines := make([]pricing.Line, len(c.Lines))
	for i, line := range c.Lines {
		lines[i] = pricing.Line{
			ProductID: line.ProductID,
			VendorID:  line.VendorID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
	}
	return lines
}
