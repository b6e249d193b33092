package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/vendora/internal/domain/money"
	"github.com/xenking/vendora/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, number, customer_ref, currency,
		billing_address, shipping_address, items,
		subtotal, tax, shipping, discount, total,
		coupon_code, shipping_method,
		status, payment_status, fulfillment_status,
		placed_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, 1)`

	getOrderSQL = `SELECT id, number, customer_ref, currency,
		billing_address, shipping_address, items,
		subtotal, tax, shipping, discount, total,
		coupon_code, shipping_method,
		status, payment_status, fulfillment_status,
		transaction_id, refund_transaction_id,
		placed_at, confirmed_at, shipped_at, delivered_at, cancelled_at,
		cancellation_reason, version
		FROM orders WHERE id = $1`

	saveOrderSQL = `UPDATE orders
		SET items = $2, subtotal = $3, tax = $4, shipping = $5, discount = $6, total = $7,
		    status = $8, payment_status = $9, fulfillment_status = $10,
		    transaction_id = $11, refund_transaction_id = $12,
		    confirmed_at = $13, shipped_at = $14, delivered_at = $15, cancelled_at = $16,
		    cancellation_reason = $17, version = version + 1
		WHERE id = $1 AND version = $18`
)

// orderItemRow is the JSONB shape of an order item.
type orderItemRow struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"product_id"`
	VendorID          string          `json:"vendor_id"`
	ProductName       string          `json:"product_name"`
	ProductSKU        string          `json:"product_sku"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	FulfillmentStatus string          `json:"fulfillment_status"`
	TrackingNumber    string          `json:"tracking_number,omitempty"`
	ReservationToken  string          `json:"reservation_token,omitempty"`
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The
// aggregate is read and written whole; optimistic concurrency rides on the
// version column.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order with version 1.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := marshalOrderItems(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	billingJSON, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshaling billing address: %w", err)
	}
	shippingJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.Number, o.CustomerRef, o.Currency,
		billingJSON, shippingJSON, itemsJSON,
		o.Subtotal.Amount(), o.Tax.Amount(), o.Shipping.Amount(),
		o.Discount.Amount(), o.Total.Amount(),
		o.CouponCode, o.ShippingMethod,
		string(o.Status), string(o.PaymentStatus), string(o.FulfillmentStatus),
		o.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	o.Version = 1
	return nil
}

// Get loads an order by ID. Returns order.ErrNotFound when it does not
// exist.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	var (
		o            order.Order
		billingJSON  []byte
		shippingJSON []byte
		itemsJSON    []byte

		subtotal, tax, shipping, discount, total decimal.Decimal

		status, paymentStatus, fulfillmentStatus string
	)
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.Number, &o.CustomerRef, &o.Currency,
		&billingJSON, &shippingJSON, &itemsJSON,
		&subtotal, &tax, &shipping, &discount, &total,
		&o.CouponCode, &o.ShippingMethod,
		&status, &paymentStatus, &fulfillmentStatus,
		&o.TransactionID, &o.RefundTransactionID,
		&o.PlacedAt, &o.ConfirmedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
		&o.CancellationReason, &o.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.FulfillmentStatus = order.FulfillmentStatus(fulfillmentStatus)

	if err := json.Unmarshal(billingJSON, &o.BillingAddress); err != nil {
		return nil, fmt.Errorf("decoding billing address of order %q: %w", id, err)
	}
	if err := json.Unmarshal(shippingJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decoding shipping address of order %q: %w", id, err)
	}
	o.Items, err = unmarshalOrderItems(itemsJSON, o.ID, o.Currency)
	if err != nil {
		return nil, fmt.Errorf("decoding items of order %q: %w", id, err)
	}

	for dst, src := range map[*money.Money]decimal.Decimal{
		&o.Subtotal: subtotal,
		&o.Tax:      tax,
		&o.Shipping: shipping,
		&o.Discount: discount,
		&o.Total:    total,
	} {
		m, err := money.New(src, o.Currency)
		if err != nil {
			return nil, fmt.Errorf("money field of order %q: %w", id, err)
		}
		*dst = m
	}
	return &o, nil
}

// Save writes the order back, rejecting stale versions with
// order.ErrConcurrentModification.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	itemsJSON, err := marshalOrderItems(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	tag, err := r.pool.Exec(ctx, saveOrderSQL,
		o.ID, itemsJSON,
		o.Subtotal.Amount(), o.Tax.Amount(), o.Shipping.Amount(),
		o.Discount.Amount(), o.Total.Amount(),
		string(o.Status), string(o.PaymentStatus), string(o.FulfillmentStatus),
		o.TransactionID, o.RefundTransactionID,
		o.ConfirmedAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt,
		o.CancellationReason, o.Version,
	)
	if err != nil {
		return fmt.Errorf("saving order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrConcurrentModification
	}
	o.Version++
	return nil
}

func marshalOrderItems(items []order.Item) ([]byte, error) {
	rows := make([]orderItemRow, len(items))
	for i, item := range items {
		rows[i] = orderItemRow{
			ID:                item.ID,
			ProductID:         item.ProductID,
			VendorID:          item.VendorID,
			ProductName:       item.ProductName,
			ProductSKU:        item.ProductSKU,
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice.Amount(),
			TotalPrice:        item.TotalPrice.Amount(),
			FulfillmentStatus: string(item.FulfillmentStatus),
			TrackingNumber:    item.TrackingNumber,
			ReservationToken:  item.ReservationToken,
		}
	}
	return json.Marshal(rows)
}

func unmarshalOrderItems(data []byte, orderID, currency string) ([]order.Item, error) {
	var rows []orderItemRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}

	items := make([]order.Item, len(rows))
	for i, row := range rows {
		unit, err := money.New(row.UnitPrice, currency)
		if err != nil {
			return nil, fmt.Errorf("unit price of item %q: %w", row.ID, err)
		}
		total, err := money.New(row.TotalPrice, currency)
		if err != nil {
			return nil, fmt.Errorf("total price of item %q: %w", row.ID, err)
		}
		items[i] = order.Item{
			ID:                row.ID,
			OrderID:           orderID,
			ProductID:         row.ProductID,
			VendorID:          row.VendorID,
			ProductName:       row.ProductName,
			ProductSKU:        row.ProductSKU,
			Quantity:          row.Quantity,
			UnitPrice:         unit,
			TotalPrice:        total,
			FulfillmentStatus: order.FulfillmentStatus(row.FulfillmentStatus),
			TrackingNumber:    row.TrackingNumber,
			ReservationToken:  row.ReservationToken,
		}
	}
	return items, nil
}
