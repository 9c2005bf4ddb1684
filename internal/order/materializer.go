package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kiranalabs/backend-kirana/internal/db"
	"github.com/kiranalabs/backend-kirana/internal/draft"
)

// ErrInsufficientStock reports a line whose conditional stock decrement
// matched no row. The whole transaction rolls back.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrAlreadySettled reports that an order with this number already exists for
// the tenant. Callers treat it as idempotent success, not failure.
var ErrAlreadySettled = errors.New("order already settled")

const uniqueViolation = "23505"

// Beginner opens database transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Result describes the order produced (or found) by materialization.
type Result struct {
	OrderID        pgtype.UUID
	OrderNumber    string
	AlreadySettled bool
}

// Materializer converts a validated draft into a durable order in one
// transaction: order row, line items, stock decrements and cart close all
// commit together or not at all.
type Materializer struct {
	DB             Beginner
	Q              *db.Queries
	AllowBackorder bool
	Log            zerolog.Logger
}

// Materialize settles the draft for the tenant. Finding the order number
// already present returns the existing order with AlreadySettled set.
func (m *Materializer) Materialize(ctx context.Context, tenantID pgtype.UUID, d draft.Order, gatewayOrderID, gatewayPaymentID string) (Result, error) {
	if m == nil || m.DB == nil || m.Q == nil {
		return Result{}, errors.New("order materializer not configured")
	}
	ctx, span := otel.Tracer("order.Materializer").Start(ctx, "Materializer.Materialize")
	defer span.End()
	span.SetAttributes(attribute.Int("order.items", len(d.Items)))

	tx, err := m.DB.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin settlement tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := m.Q.WithTx(tx)

	ref, err := qtx.GetOrderRefByNumber(ctx, db.GetOrderRefByNumberParams{
		TenantID:    tenantID,
		OrderNumber: d.OrderNumber,
	})
	if err == nil {
		return Result{OrderID: ref.ID, OrderNumber: ref.OrderNumber, AlreadySettled: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Result{}, fmt.Errorf("check order number: %w", err)
	}

	params, err := insertParams(tenantID, d, gatewayOrderID, gatewayPaymentID)
	if err != nil {
		return Result{}, err
	}
	orderID, err := qtx.InsertOrder(ctx, params)
	if err != nil {
		// A racing settlement can insert the same number between the guard
		// and our insert. The unique constraint resolves the race.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Result{}, ErrAlreadySettled
		}
		return Result{}, fmt.Errorf("insert order: %w", err)
	}

	for i, it := range d.Items {
		productID, err := db.UUIDFromString(it.ProductID)
		if err != nil {
			return Result{}, fmt.Errorf("item %d: invalid product id: %w", i, err)
		}
		variantID := pgtype.UUID{}
		if it.VariantID != "" {
			variantID, err = db.UUIDFromString(it.VariantID)
			if err != nil {
				return Result{}, fmt.Errorf("item %d: invalid variant id: %w", i, err)
			}
		}
		if err := qtx.InsertOrderItem(ctx, db.InsertOrderItemParams{
			OrderID:   orderID,
			ProductID: productID,
			VariantID: variantID,
			Name:      it.Name,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		}); err != nil {
			return Result{}, fmt.Errorf("insert order item %d: %w", i, err)
		}

		var affected int64
		stockArgs := db.DecrementStockParams{
			ID:             productID,
			TenantID:       tenantID,
			Qty:            it.Qty,
			AllowBackorder: m.AllowBackorder,
		}
		if variantID.Valid {
			stockArgs.ID = variantID
			affected, err = qtx.DecrementVariantStock(ctx, stockArgs)
		} else {
			affected, err = qtx.DecrementProductStock(ctx, stockArgs)
		}
		if err != nil {
			return Result{}, fmt.Errorf("decrement stock for item %d: %w", i, err)
		}
		if affected == 0 {
			return Result{}, fmt.Errorf("item %q: %w", it.Name, ErrInsufficientStock)
		}
	}

	if d.CartID != "" {
		cartID, err := db.UUIDFromString(d.CartID)
		if err != nil {
			return Result{}, fmt.Errorf("invalid cart id: %w", err)
		}
		if err := qtx.MarkCartConverted(ctx, db.MarkCartConvertedParams{CartID: cartID, TenantID: tenantID}); err != nil {
			return Result{}, fmt.Errorf("close cart: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Result{}, ErrAlreadySettled
		}
		return Result{}, fmt.Errorf("commit settlement tx: %w", err)
	}

	m.Log.Info().
		Str("order_id", db.UUIDString(orderID)).
		Str("order_number", d.OrderNumber).
		Int("items", len(d.Items)).
		Msg("order materialized")
	return Result{OrderID: orderID, OrderNumber: d.OrderNumber}, nil
}

func insertParams(tenantID pgtype.UUID, d draft.Order, gatewayOrderID, gatewayPaymentID string) (db.InsertOrderParams, error) {
	params := db.InsertOrderParams{
		TenantID:         tenantID,
		OrderNumber:      d.OrderNumber,
		CustomerName:     d.CustomerName,
		CustomerPhone:    db.TextOrNull(d.CustomerPhone),
		CustomerEmail:    db.TextOrNull(d.CustomerEmail),
		ShippingAddress:  d.ShippingAddress,
		Subtotal:         d.Subtotal,
		DiscountTotal:    d.DiscountTotal,
		DeliveryFee:      d.DeliveryFee,
		Total:            d.Total,
		Currency:         d.Currency,
		PaymentMethod:    "razorpay",
		PaymentStatus:    "paid",
		FulfillmentState: "new",
		DeliveryZone:     db.TextOrNull(d.DeliveryZone),
		DeliverySlot:     db.TextOrNull(d.DeliverySlot),
		DeliveryOption:   db.TextOrNull(d.DeliveryOption),
		CouponCode:       db.TextOrNull(d.CouponCode),
		GatewayOrderID:   db.TextOrNull(gatewayOrderID),
		GatewayPaymentID: db.TextOrNull(gatewayPaymentID),
	}
	if d.CouponID != "" {
		couponID, err := db.UUIDFromString(d.CouponID)
		if err != nil {
			return db.InsertOrderParams{}, fmt.Errorf("invalid coupon id: %w", err)
		}
		params.CouponID = couponID
	}
	if d.CartID != "" {
		cartID, err := db.UUIDFromString(d.CartID)
		if err != nil {
			return db.InsertOrderParams{}, fmt.Errorf("invalid cart id: %w", err)
		}
		params.CartID = cartID
	}
	return params, nil
}
