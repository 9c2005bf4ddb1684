package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/kiranalabs/backend-kirana/internal/coupon"
	"github.com/kiranalabs/backend-kirana/internal/db"
	"github.com/kiranalabs/backend-kirana/internal/delivery"
	"github.com/kiranalabs/backend-kirana/internal/obs"
)

// Handlers executes post-settlement side effects on the worker.
type Handlers struct {
	Coupons  *coupon.Service
	Delivery *delivery.Service
	Log      zerolog.Logger
}

// Mux registers all settlement side-effect handlers.
func (h *Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCouponSettle, h.HandleCouponSettle)
	mux.HandleFunc(TypeDeliveryAssign, h.HandleDeliveryAssign)
	return mux
}

// HandleCouponSettle redeems the coupon recorded on a settled order.
func (h *Handlers) HandleCouponSettle(ctx context.Context, t *asynq.Task) error {
	var p CouponSettlePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode coupon payload: %w", asynq.SkipRetry)
	}
	couponID, err := db.UUIDFromString(p.CouponID)
	if err != nil {
		return fmt.Errorf("invalid coupon id %q: %w", p.CouponID, asynq.SkipRetry)
	}
	orderID, err := db.UUIDFromString(p.OrderID)
	if err != nil {
		return fmt.Errorf("invalid order id %q: %w", p.OrderID, asynq.SkipRetry)
	}
	if err := h.Coupons.Settle(ctx, couponID, orderID, p.CustomerID, p.Amount); err != nil {
		obs.SideEffectTotal.WithLabelValues("coupon", "error").Inc()
		h.Log.Error().Err(err).Str("order_id", p.OrderID).Msg("coupon settle failed")
		return err
	}
	obs.SideEffectTotal.WithLabelValues("coupon", "ok").Inc()
	return nil
}

// HandleDeliveryAssign routes a settled grocery order to its delivery area.
// An unserved pincode is final, not retryable.
func (h *Handlers) HandleDeliveryAssign(ctx context.Context, t *asynq.Task) error {
	var p DeliveryAssignPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode delivery payload: %w", asynq.SkipRetry)
	}
	tenantID, err := db.UUIDFromString(p.TenantID)
	if err != nil {
		return fmt.Errorf("invalid tenant id %q: %w", p.TenantID, asynq.SkipRetry)
	}
	orderID, err := db.UUIDFromString(p.OrderID)
	if err != nil {
		return fmt.Errorf("invalid order id %q: %w", p.OrderID, asynq.SkipRetry)
	}
	if err := h.Delivery.Assign(ctx, tenantID, orderID, p.Pincode); err != nil {
		if errors.Is(err, delivery.ErrNoAreaForPincode) {
			obs.SideEffectTotal.WithLabelValues("delivery", "unserved").Inc()
			h.Log.Warn().Str("order_id", p.OrderID).Str("pincode", p.Pincode).Msg("no delivery area for pincode")
			return nil
		}
		obs.SideEffectTotal.WithLabelValues("delivery", "error").Inc()
		h.Log.Error().Err(err).Str("order_id", p.OrderID).Msg("delivery assignment failed")
		return err
	}
	obs.SideEffectTotal.WithLabelValues("delivery", "ok").Inc()
	return nil
}
