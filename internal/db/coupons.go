package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getCouponByID = `
SELECT id, tenant_id, code, used_count, active
FROM coupons
WHERE id = $1
`

// GetCouponByID loads a coupon by primary key.
func (q *Queries) GetCouponByID(ctx context.Context, id pgtype.UUID) (Coupon, error) {
	var c Coupon
	err := q.db.QueryRow(ctx, getCouponByID, id).Scan(&c.ID, &c.TenantID, &c.Code, &c.UsedCount, &c.Active)
	return c, err
}

const getCouponRedemptionByOrder = `
SELECT id, coupon_id, order_id, customer_id, amount, created_at
FROM coupon_redemptions
WHERE coupon_id = $1 AND order_id = $2
`

// GetCouponRedemptionByOrderParams identifies a redemption by coupon and order.
type GetCouponRedemptionByOrderParams struct {
	CouponID pgtype.UUID
	OrderID  pgtype.UUID
}

// GetCouponRedemptionByOrder checks whether a coupon was already redeemed against an order.
func (q *Queries) GetCouponRedemptionByOrder(ctx context.Context, arg GetCouponRedemptionByOrderParams) (CouponRedemption, error) {
	var cr CouponRedemption
	err := q.db.QueryRow(ctx, getCouponRedemptionByOrder, arg.CouponID, arg.OrderID).
		Scan(&cr.ID, &cr.CouponID, &cr.OrderID, &cr.CustomerID, &cr.Amount, &cr.CreatedAt)
	return cr, err
}

const insertCouponRedemption = `
INSERT INTO coupon_redemptions (coupon_id, order_id, customer_id, amount)
VALUES ($1, $2, $3, $4)
`

// InsertCouponRedemptionParams records one coupon use.
type InsertCouponRedemptionParams struct {
	CouponID   pgtype.UUID
	OrderID    pgtype.UUID
	CustomerID pgtype.Text
	Amount     int64
}

// InsertCouponRedemption creates the redemption row linking coupon and order.
func (q *Queries) InsertCouponRedemption(ctx context.Context, arg InsertCouponRedemptionParams) error {
	_, err := q.db.Exec(ctx, insertCouponRedemption, arg.CouponID, arg.OrderID, arg.CustomerID, arg.Amount)
	return err
}

const incrementCouponUsage = `
UPDATE coupons
SET used_count = used_count + 1
WHERE id = $1
`

// IncrementCouponUsage bumps the coupon usage counter.
func (q *Queries) IncrementCouponUsage(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, incrementCouponUsage, id)
	return err
}
