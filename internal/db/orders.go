package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getOrderRefByNumber = `
SELECT id, order_number
FROM orders
WHERE tenant_id = $1 AND order_number = $2
`

// GetOrderRefByNumberParams identifies an order by its tenant-scoped number.
type GetOrderRefByNumberParams struct {
	TenantID    pgtype.UUID
	OrderNumber string
}

// GetOrderRefByNumber resolves a tenant-scoped order number to its id.
func (q *Queries) GetOrderRefByNumber(ctx context.Context, arg GetOrderRefByNumberParams) (OrderRef, error) {
	var ref OrderRef
	err := q.db.QueryRow(ctx, getOrderRefByNumber, arg.TenantID, arg.OrderNumber).Scan(&ref.ID, &ref.OrderNumber)
	return ref, err
}

const insertOrder = `
INSERT INTO orders (
	tenant_id, order_number, customer_name, customer_phone, customer_email,
	shipping_address, subtotal, discount_total, delivery_fee, total, currency,
	payment_method, payment_status, fulfillment_state,
	delivery_zone, delivery_slot, delivery_option,
	coupon_id, coupon_code, gateway_order_id, gateway_payment_id, cart_id
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
	$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
)
RETURNING id
`

// InsertOrderParams carries every column of the durable order record.
type InsertOrderParams struct {
	TenantID         pgtype.UUID
	OrderNumber      string
	CustomerName     string
	CustomerPhone    pgtype.Text
	CustomerEmail    pgtype.Text
	ShippingAddress  []byte
	Subtotal         int64
	DiscountTotal    int64
	DeliveryFee      int64
	Total            int64
	Currency         string
	PaymentMethod    string
	PaymentStatus    string
	FulfillmentState string
	DeliveryZone     pgtype.Text
	DeliverySlot     pgtype.Text
	DeliveryOption   pgtype.Text
	CouponID         pgtype.UUID
	CouponCode       pgtype.Text
	GatewayOrderID   pgtype.Text
	GatewayPaymentID pgtype.Text
	CartID           pgtype.UUID
}

// InsertOrder creates the order row and returns its id.
func (q *Queries) InsertOrder(ctx context.Context, arg InsertOrderParams) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx, insertOrder,
		arg.TenantID, arg.OrderNumber, arg.CustomerName, arg.CustomerPhone, arg.CustomerEmail,
		arg.ShippingAddress, arg.Subtotal, arg.DiscountTotal, arg.DeliveryFee, arg.Total, arg.Currency,
		arg.PaymentMethod, arg.PaymentStatus, arg.FulfillmentState,
		arg.DeliveryZone, arg.DeliverySlot, arg.DeliveryOption,
		arg.CouponID, arg.CouponCode, arg.GatewayOrderID, arg.GatewayPaymentID, arg.CartID,
	).Scan(&id)
	return id, err
}

const insertOrderItem = `
INSERT INTO order_items (order_id, product_id, variant_id, name, qty, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// InsertOrderItemParams is a single purchased line.
type InsertOrderItemParams struct {
	OrderID   pgtype.UUID
	ProductID pgtype.UUID
	VariantID pgtype.UUID
	Name      string
	Qty       int32
	UnitPrice int64
	LineTotal int64
}

// InsertOrderItem creates an order line item.
func (q *Queries) InsertOrderItem(ctx context.Context, arg InsertOrderItemParams) error {
	_, err := q.db.Exec(ctx, insertOrderItem,
		arg.OrderID, arg.ProductID, arg.VariantID, arg.Name, arg.Qty, arg.UnitPrice, arg.LineTotal)
	return err
}

const decrementProductStock = `
UPDATE products
SET stock = stock - $3
WHERE id = $1 AND tenant_id = $2 AND ($4 OR stock >= $3)
`

// DecrementStockParams describes a conditional stock decrement.
type DecrementStockParams struct {
	ID             pgtype.UUID
	TenantID       pgtype.UUID
	Qty            int32
	AllowBackorder bool
}

// DecrementProductStock applies a single conditional stock decrement. The
// returned count is zero when stock was insufficient and backorders are off.
func (q *Queries) DecrementProductStock(ctx context.Context, arg DecrementStockParams) (int64, error) {
	tag, err := q.db.Exec(ctx, decrementProductStock, arg.ID, arg.TenantID, arg.Qty, arg.AllowBackorder)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const decrementVariantStock = `
UPDATE product_variants
SET stock = stock - $3
WHERE id = $1
  AND product_id IN (SELECT id FROM products WHERE tenant_id = $2)
  AND ($4 OR stock >= $3)
`

// DecrementVariantStock is the variant-level counterpart of DecrementProductStock.
func (q *Queries) DecrementVariantStock(ctx context.Context, arg DecrementStockParams) (int64, error) {
	tag, err := q.db.Exec(ctx, decrementVariantStock, arg.ID, arg.TenantID, arg.Qty, arg.AllowBackorder)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const markCartConverted = `
UPDATE carts
SET status = 'converted', updated_at = now()
WHERE id = $1 AND tenant_id = $2
`

// MarkCartConvertedParams closes the source cart after settlement.
type MarkCartConvertedParams struct {
	CartID   pgtype.UUID
	TenantID pgtype.UUID
}

// MarkCartConverted flags the source cart as converted into an order.
func (q *Queries) MarkCartConverted(ctx context.Context, arg MarkCartConvertedParams) error {
	_, err := q.db.Exec(ctx, markCartConverted, arg.CartID, arg.TenantID)
	return err
}

const getOrderByID = `
SELECT id, tenant_id, order_number, customer_name, customer_phone, customer_email,
	shipping_address, subtotal, discount_total, delivery_fee, total, currency,
	payment_method, payment_status, fulfillment_state,
	delivery_zone, delivery_slot, delivery_option,
	coupon_id, coupon_code, gateway_order_id, gateway_payment_id, cart_id, created_at
FROM orders
WHERE id = $1
`

// GetOrderByID loads a full order row.
func (q *Queries) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	var o Order
	err := q.db.QueryRow(ctx, getOrderByID, id).Scan(
		&o.ID, &o.TenantID, &o.OrderNumber, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.ShippingAddress, &o.Subtotal, &o.DiscountTotal, &o.DeliveryFee, &o.Total, &o.Currency,
		&o.PaymentMethod, &o.PaymentStatus, &o.FulfillmentState,
		&o.DeliveryZone, &o.DeliverySlot, &o.DeliveryOption,
		&o.CouponID, &o.CouponCode, &o.GatewayOrderID, &o.GatewayPaymentID, &o.CartID, &o.CreatedAt)
	return o, err
}
