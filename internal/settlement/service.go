package settlement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kiranalabs/backend-kirana/internal/common"
	"github.com/kiranalabs/backend-kirana/internal/db"
	"github.com/kiranalabs/backend-kirana/internal/draft"
	"github.com/kiranalabs/backend-kirana/internal/intent"
	"github.com/kiranalabs/backend-kirana/internal/obs"
	"github.com/kiranalabs/backend-kirana/internal/order"
	"github.com/kiranalabs/backend-kirana/internal/tasks"
	"github.com/kiranalabs/backend-kirana/internal/tenant"
)

// IntentStore drives payment intents through their lifecycle.
type IntentStore interface {
	Get(ctx context.Context, id pgtype.UUID) (db.PaymentIntent, error)
	Claim(ctx context.Context, id pgtype.UUID) (db.PaymentIntent, error)
	Release(ctx context.Context, id pgtype.UUID, reason string) error
	MarkPaid(ctx context.Context, id pgtype.UUID, gatewayPaymentID string) error
	MarkCancelled(ctx context.Context, id pgtype.UUID, reason string) error
}

// Materializer turns a validated draft into a durable order.
type Materializer interface {
	Materialize(ctx context.Context, tenantID pgtype.UUID, d draft.Order, gatewayOrderID, gatewayPaymentID string) (order.Result, error)
}

// SecretSource resolves the signing secret for a payment.
type SecretSource interface {
	Resolve(ctx context.Context, typ PaymentType, tenantID pgtype.UUID) (string, error)
}

// TenantSource exposes the tenant operations settlement needs.
type TenantSource interface {
	ResolveBySlug(ctx context.Context, slug string) (db.Tenant, error)
	ResolveByID(ctx context.Context, id pgtype.UUID) (db.Tenant, error)
	ApplyUpgrade(ctx context.Context, arg tenant.ApplyUpgradeParams) error
}

// SideEffects hands post-settlement work to the background queue.
type SideEffects interface {
	EnqueueCouponSettle(p tasks.CouponSettlePayload) error
	EnqueueDeliveryAssign(p tasks.DeliveryAssignPayload) error
}

// OrderLookup finds existing orders for idempotent replies.
type OrderLookup interface {
	GetOrderRefByNumber(ctx context.Context, arg db.GetOrderRefByNumberParams) (db.OrderRef, error)
}

// SettleInput carries the gateway callback parameters for an order payment.
type SettleInput struct {
	IntentID         string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// SettleResult reports the settled order. AlreadySettled means a previous
// delivery of the same callback did the work.
type SettleResult struct {
	OrderID        string `json:"orderId"`
	OrderNumber    string `json:"orderNumber"`
	AlreadySettled bool   `json:"alreadySettled"`
}

// Service orchestrates payment settlement: claim the callback, verify the
// signature, validate the draft, materialize the order, finalize the intent
// and fan out side effects.
type Service struct {
	Intents IntentStore
	Tenants TenantSource
	Drafts  *draft.Validator
	Orders  Materializer
	Secrets SecretSource
	Lookup  OrderLookup
	Effects SideEffects
	Log     zerolog.Logger
}

// Settle processes one order payment callback end to end. Concurrent and
// repeated deliveries of the same callback converge on a single order.
func (s *Service) Settle(ctx context.Context, in SettleInput) (SettleResult, error) {
	if s == nil || s.Intents == nil || s.Orders == nil || s.Secrets == nil {
		return SettleResult{}, errors.New("settlement service not configured")
	}
	ctx, span := otel.Tracer("settlement.Service").Start(ctx, "SettlementService.Settle")
	defer span.End()
	span.SetAttributes(attribute.String("payment.gateway_order_id", in.GatewayOrderID))
	intentID, err := db.UUIDFromString(in.IntentID)
	if err != nil {
		return SettleResult{}, common.NewAppError("INVALID_INTENT", "invalid payment intent id", http.StatusBadRequest, err)
	}

	pi, err := s.Intents.Claim(ctx, intentID)
	if errors.Is(err, intent.ErrNotFound) {
		return SettleResult{}, common.NewAppError("INTENT_NOT_FOUND", "payment intent not found", http.StatusNotFound, err)
	}
	if errors.Is(err, intent.ErrAlreadyClaimed) {
		return s.resolveDuplicate(ctx, intentID)
	}
	if err != nil {
		return SettleResult{}, fmt.Errorf("claim settlement: %w", err)
	}

	// From here every failure must release the claim so a legitimate retry
	// can settle later.
	if pi.GatewayOrderID.Valid && pi.GatewayOrderID.String != "" && pi.GatewayOrderID.String != in.GatewayOrderID {
		s.release(ctx, intentID, "gateway order mismatch")
		return SettleResult{}, common.NewAppError("GATEWAY_ORDER_MISMATCH", "payment does not belong to this intent", http.StatusBadRequest, nil)
	}

	secret, err := s.Secrets.Resolve(ctx, PaymentTypeOrder, pi.TenantID)
	if err != nil {
		s.release(ctx, intentID, "secret unavailable")
		if common.IsAppError(err) {
			return SettleResult{}, err
		}
		return SettleResult{}, common.NewAppError("PAYMENTS_NOT_CONFIGURED", "payment verification unavailable", http.StatusServiceUnavailable, err)
	}
	if err := VerifySignature(secret, in.GatewayOrderID, in.GatewayPaymentID, in.Signature); err != nil {
		s.release(ctx, intentID, "signature verification failed")
		return SettleResult{}, common.NewAppError("SIGNATURE_INVALID", "payment signature verification failed", http.StatusForbidden, err)
	}

	d, err := s.Drafts.Parse(pi.DraftOrderData)
	if err != nil {
		s.release(ctx, intentID, "draft validation failed")
		return SettleResult{}, err
	}

	start := time.Now()
	res, err := s.Orders.Materialize(ctx, pi.TenantID, d, in.GatewayOrderID, in.GatewayPaymentID)
	obs.MaterializeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, order.ErrAlreadySettled) {
			return s.finishExisting(ctx, intentID, pi.TenantID, d.OrderNumber, in.GatewayPaymentID)
		}
		s.release(ctx, intentID, err.Error())
		if errors.Is(err, order.ErrInsufficientStock) {
			return SettleResult{}, common.NewAppError("INSUFFICIENT_STOCK", "one or more items are out of stock", http.StatusConflict, err)
		}
		return SettleResult{}, fmt.Errorf("materialize order: %w", err)
	}

	if err := s.Intents.MarkPaid(ctx, intentID, in.GatewayPaymentID); err != nil {
		// The order is committed; the intent row will be reconciled by an
		// operator via the admin API if this ever happens.
		s.Log.Error().Err(err).Str("intent_id", in.IntentID).Msg("mark intent paid after materialization")
	}

	if !res.AlreadySettled {
		s.fanOut(ctx, pi.TenantID, res.OrderID, d)
	}
	return SettleResult{
		OrderID:        db.UUIDString(res.OrderID),
		OrderNumber:    res.OrderNumber,
		AlreadySettled: res.AlreadySettled,
	}, nil
}

// Cancel marks an intent abandoned when the gateway reports no payment.
func (s *Service) Cancel(ctx context.Context, intentID string, reason string) error {
	id, err := db.UUIDFromString(intentID)
	if err != nil {
		return common.NewAppError("INVALID_INTENT", "invalid payment intent id", http.StatusBadRequest, err)
	}
	return s.Intents.MarkCancelled(ctx, id, reason)
}

// UpgradeInput carries the callback parameters for a platform plan upgrade.
type UpgradeInput struct {
	StoreSlug        string
	Plan             string
	Amount           int64
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// SettleUpgrade verifies a plan upgrade payment with the platform secret and
// applies the new plan to the tenant.
func (s *Service) SettleUpgrade(ctx context.Context, in UpgradeInput) error {
	if s == nil || s.Tenants == nil || s.Secrets == nil {
		return errors.New("settlement service not configured")
	}
	t, err := s.Tenants.ResolveBySlug(ctx, in.StoreSlug)
	if err != nil {
		return err
	}
	secret, err := s.Secrets.Resolve(ctx, PaymentTypeUpgrade, t.ID)
	if err != nil {
		if common.IsAppError(err) {
			return err
		}
		return common.NewAppError("PAYMENTS_NOT_CONFIGURED", "payment verification unavailable", http.StatusServiceUnavailable, err)
	}
	if err := VerifySignature(secret, in.GatewayOrderID, in.GatewayPaymentID, in.Signature); err != nil {
		return common.NewAppError("SIGNATURE_INVALID", "payment signature verification failed", http.StatusForbidden, err)
	}
	if err := s.Tenants.ApplyUpgrade(ctx, tenant.ApplyUpgradeParams{
		TenantID:         t.ID,
		Plan:             in.Plan,
		Amount:           in.Amount,
		GatewayOrderID:   in.GatewayOrderID,
		GatewayPaymentID: in.GatewayPaymentID,
	}); err != nil {
		return fmt.Errorf("apply upgrade: %w", err)
	}
	s.Log.Info().Str("store", in.StoreSlug).Str("plan", in.Plan).Msg("plan upgrade settled")
	return nil
}

// resolveDuplicate answers a callback whose intent someone else already
// claimed. A paid intent yields the existing order; an in-flight one asks the
// caller to back off.
func (s *Service) resolveDuplicate(ctx context.Context, intentID pgtype.UUID) (SettleResult, error) {
	pi, err := s.Intents.Get(ctx, intentID)
	if err != nil {
		return SettleResult{}, fmt.Errorf("inspect claimed intent: %w", err)
	}
	switch pi.Status {
	case db.IntentStatusPaid:
		res := SettleResult{AlreadySettled: true}
		if s.Lookup != nil && s.Drafts != nil {
			if d, derr := s.Drafts.Parse(pi.DraftOrderData); derr == nil {
				ref, lerr := s.Lookup.GetOrderRefByNumber(ctx, db.GetOrderRefByNumberParams{
					TenantID:    pi.TenantID,
					OrderNumber: d.OrderNumber,
				})
				if lerr == nil {
					res.OrderID = db.UUIDString(ref.ID)
					res.OrderNumber = ref.OrderNumber
				} else if !errors.Is(lerr, pgx.ErrNoRows) {
					return SettleResult{}, fmt.Errorf("look up settled order: %w", lerr)
				}
			}
		}
		return res, nil
	case db.IntentStatusCancelled:
		return SettleResult{}, common.NewAppError("INTENT_CANCELLED", "payment intent was cancelled", http.StatusConflict, nil)
	default:
		return SettleResult{}, common.NewAppError("SETTLEMENT_IN_PROGRESS", "another settlement attempt is in flight", http.StatusConflict, nil)
	}
}

// finishExisting completes the idempotent path where the order row already
// exists but this delivery won the claim.
func (s *Service) finishExisting(ctx context.Context, intentID, tenantID pgtype.UUID, orderNumber, gatewayPaymentID string) (SettleResult, error) {
	if err := s.Intents.MarkPaid(ctx, intentID, gatewayPaymentID); err != nil {
		s.Log.Error().Err(err).Msg("mark intent paid for existing order")
	}
	res := SettleResult{OrderNumber: orderNumber, AlreadySettled: true}
	if s.Lookup != nil {
		ref, err := s.Lookup.GetOrderRefByNumber(ctx, db.GetOrderRefByNumberParams{
			TenantID:    tenantID,
			OrderNumber: orderNumber,
		})
		if err == nil {
			res.OrderID = db.UUIDString(ref.ID)
		}
	}
	return res, nil
}

func (s *Service) release(ctx context.Context, intentID pgtype.UUID, reason string) {
	if err := s.Intents.Release(ctx, intentID, reason); err != nil {
		s.Log.Error().Err(err).Str("reason", reason).Msg("release intent claim")
	}
}

// fanOut enqueues post-settlement side effects. Failures are logged and never
// surface to the caller: the order is already settled.
func (s *Service) fanOut(ctx context.Context, tenantID, orderID pgtype.UUID, d draft.Order) {
	if s.Effects == nil {
		return
	}
	if d.CouponID != "" {
		if err := s.Effects.EnqueueCouponSettle(tasks.CouponSettlePayload{
			TenantID:   db.UUIDString(tenantID),
			CouponID:   d.CouponID,
			OrderID:    db.UUIDString(orderID),
			CustomerID: d.CustomerID,
			Amount:     d.DiscountTotal,
		}); err != nil {
			s.Log.Error().Err(err).Msg("enqueue coupon settle")
		}
	}
	if d.Pincode == "" || s.Tenants == nil {
		return
	}
	t, err := s.Tenants.ResolveByID(ctx, tenantID)
	if err != nil {
		s.Log.Error().Err(err).Msg("resolve tenant for delivery assignment")
		return
	}
	if t.BusinessType != db.BusinessTypeGrocery {
		return
	}
	if err := s.Effects.EnqueueDeliveryAssign(tasks.DeliveryAssignPayload{
		TenantID: db.UUIDString(tenantID),
		OrderID:  db.UUIDString(orderID),
		Pincode:  d.Pincode,
	}); err != nil {
		s.Log.Error().Err(err).Msg("enqueue delivery assignment")
	}
}
