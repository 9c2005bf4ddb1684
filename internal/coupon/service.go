package coupon

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/kiranalabs/backend-kirana/internal/db"
)

// Querier captures the database methods required by the coupon service.
type Querier interface {
	GetCouponByID(ctx context.Context, id pgtype.UUID) (db.Coupon, error)
	GetCouponRedemptionByOrder(ctx context.Context, arg db.GetCouponRedemptionByOrderParams) (db.CouponRedemption, error)
	InsertCouponRedemption(ctx context.Context, arg db.InsertCouponRedemptionParams) error
	IncrementCouponUsage(ctx context.Context, id pgtype.UUID) error
}

// Service records coupon redemptions after an order settles.
type Service struct {
	Q   Querier
	Log zerolog.Logger
}

// Settle marks the coupon as redeemed against the order and bumps its usage
// counter. Re-running for the same coupon and order is a no-op, and a missing
// coupon is ignored: settlement already happened, there is nothing to unwind.
func (s *Service) Settle(ctx context.Context, couponID, orderID pgtype.UUID, customerID string, amount int64) error {
	if s == nil || s.Q == nil {
		return errors.New("coupon service not configured")
	}
	if !couponID.Valid || !orderID.Valid {
		return nil
	}
	if amount < 0 {
		amount = 0
	}
	c, err := s.Q.GetCouponByID(ctx, couponID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	_, err = s.Q.GetCouponRedemptionByOrder(ctx, db.GetCouponRedemptionByOrderParams{CouponID: c.ID, OrderID: orderID})
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if err := s.Q.InsertCouponRedemption(ctx, db.InsertCouponRedemptionParams{
		CouponID:   c.ID,
		OrderID:    orderID,
		CustomerID: db.TextOrNull(customerID),
		Amount:     amount,
	}); err != nil {
		return err
	}
	if err := s.Q.IncrementCouponUsage(ctx, c.ID); err != nil {
		// The redemption row is already durable; the counter is advisory.
		s.Log.Warn().Err(err).
			Str("coupon_id", db.UUIDString(c.ID)).
			Str("order_id", db.UUIDString(orderID)).
			Msg("increment coupon usage failed")
	}
	return nil
}
