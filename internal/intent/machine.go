package intent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/kiranalabs/backend-kirana/internal/db"
)

// ErrAlreadyClaimed reports that another settlement attempt holds the
// callback for this intent, or the intent already reached a terminal state.
var ErrAlreadyClaimed = errors.New("intent callback already claimed")

// ErrNotFound reports a missing payment intent.
var ErrNotFound = errors.New("payment intent not found")

// ErrWrongState reports a transition attempted from an invalid state.
var ErrWrongState = errors.New("payment intent is not in a valid state for this transition")

// Querier is the subset of database queries the state machine needs.
type Querier interface {
	CreatePaymentIntent(ctx context.Context, arg db.CreatePaymentIntentParams) (db.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id pgtype.UUID) (db.PaymentIntent, error)
	SetIntentGatewayOrder(ctx context.Context, arg db.SetIntentGatewayOrderParams) (db.PaymentIntent, error)
	ClaimIntentCallback(ctx context.Context, id pgtype.UUID) (db.PaymentIntent, error)
	ReleaseIntentClaim(ctx context.Context, arg db.ReleaseIntentClaimParams) error
	MarkIntentPaid(ctx context.Context, arg db.MarkIntentPaidParams) error
	MarkIntentFailed(ctx context.Context, arg db.MarkIntentFailedParams) error
	MarkIntentCancelled(ctx context.Context, id pgtype.UUID) error
	InsertIntentEvent(ctx context.Context, arg db.InsertIntentEventParams) error
}

// Machine drives payment intents through their lifecycle:
// initiated -> gateway_order_created -> processing -> paid | failed | cancelled.
// A failed intent may be claimed again so the shopper can retry the payment.
type Machine struct {
	Q   Querier
	Log zerolog.Logger
}

// Create opens a new intent in the initiated state.
func (m *Machine) Create(ctx context.Context, arg db.CreatePaymentIntentParams) (db.PaymentIntent, error) {
	if m == nil || m.Q == nil {
		return db.PaymentIntent{}, errors.New("intent machine not configured")
	}
	pi, err := m.Q.CreatePaymentIntent(ctx, arg)
	if err != nil {
		return db.PaymentIntent{}, fmt.Errorf("create payment intent: %w", err)
	}
	m.record(ctx, pi.ID, db.IntentStatusInitiated, "intent created", nil)
	return pi, nil
}

// Get loads an intent, mapping missing rows to ErrNotFound.
func (m *Machine) Get(ctx context.Context, id pgtype.UUID) (db.PaymentIntent, error) {
	if m == nil || m.Q == nil {
		return db.PaymentIntent{}, errors.New("intent machine not configured")
	}
	pi, err := m.Q.GetPaymentIntent(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.PaymentIntent{}, ErrNotFound
	}
	return pi, err
}

// AttachGatewayOrder moves an initiated intent to gateway_order_created.
func (m *Machine) AttachGatewayOrder(ctx context.Context, id pgtype.UUID, gatewayOrderID string) (db.PaymentIntent, error) {
	if m == nil || m.Q == nil {
		return db.PaymentIntent{}, errors.New("intent machine not configured")
	}
	pi, err := m.Q.SetIntentGatewayOrder(ctx, db.SetIntentGatewayOrderParams{
		ID:             id,
		GatewayOrderID: gatewayOrderID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return db.PaymentIntent{}, ErrWrongState
	}
	if err != nil {
		return db.PaymentIntent{}, fmt.Errorf("attach gateway order: %w", err)
	}
	m.record(ctx, id, db.IntentStatusGatewayOrderCreated, "gateway order "+gatewayOrderID, nil)
	return pi, nil
}

// Claim atomically takes ownership of the payment callback. Exactly one caller
// wins; everyone else gets ErrAlreadyClaimed and must treat the settlement as
// handled elsewhere.
func (m *Machine) Claim(ctx context.Context, id pgtype.UUID) (db.PaymentIntent, error) {
	if m == nil || m.Q == nil {
		return db.PaymentIntent{}, errors.New("intent machine not configured")
	}
	pi, err := m.Q.ClaimIntentCallback(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the callback flag was already set or the intent is terminal.
		if _, getErr := m.Q.GetPaymentIntent(ctx, id); errors.Is(getErr, pgx.ErrNoRows) {
			return db.PaymentIntent{}, ErrNotFound
		}
		return db.PaymentIntent{}, ErrAlreadyClaimed
	}
	if err != nil {
		return db.PaymentIntent{}, fmt.Errorf("claim intent callback: %w", err)
	}
	m.record(ctx, id, db.IntentStatusProcessing, "callback claimed", nil)
	return pi, nil
}

// Release undoes a claim after a failed settlement so the payment can be retried.
func (m *Machine) Release(ctx context.Context, id pgtype.UUID, reason string) error {
	if m == nil || m.Q == nil {
		return errors.New("intent machine not configured")
	}
	if err := m.Q.ReleaseIntentClaim(ctx, db.ReleaseIntentClaimParams{
		ID:        id,
		LastError: reason,
	}); err != nil {
		return fmt.Errorf("release intent claim: %w", err)
	}
	m.record(ctx, id, db.IntentStatusFailed, reason, nil)
	return nil
}

// MarkPaid finalizes a processing intent after successful materialization.
func (m *Machine) MarkPaid(ctx context.Context, id pgtype.UUID, gatewayPaymentID string) error {
	if m == nil || m.Q == nil {
		return errors.New("intent machine not configured")
	}
	if err := m.Q.MarkIntentPaid(ctx, db.MarkIntentPaidParams{
		ID:               id,
		GatewayPaymentID: gatewayPaymentID,
	}); err != nil {
		return fmt.Errorf("mark intent paid: %w", err)
	}
	m.record(ctx, id, db.IntentStatusPaid, "payment "+gatewayPaymentID, nil)
	return nil
}

// MarkFailed records a verification or gateway failure on a non-terminal intent.
func (m *Machine) MarkFailed(ctx context.Context, id pgtype.UUID, reason string) error {
	if m == nil || m.Q == nil {
		return errors.New("intent machine not configured")
	}
	if err := m.Q.MarkIntentFailed(ctx, db.MarkIntentFailedParams{
		ID:        id,
		LastError: reason,
	}); err != nil {
		return fmt.Errorf("mark intent failed: %w", err)
	}
	m.record(ctx, id, db.IntentStatusFailed, reason, nil)
	return nil
}

// MarkCancelled terminates an intent the shopper abandoned.
func (m *Machine) MarkCancelled(ctx context.Context, id pgtype.UUID, reason string) error {
	if m == nil || m.Q == nil {
		return errors.New("intent machine not configured")
	}
	if err := m.Q.MarkIntentCancelled(ctx, id); err != nil {
		return fmt.Errorf("mark intent cancelled: %w", err)
	}
	m.record(ctx, id, db.IntentStatusCancelled, reason, nil)
	return nil
}

// record appends to the intent audit trail. Failures are logged, not
// propagated: the trail must never block a settlement.
func (m *Machine) record(ctx context.Context, id pgtype.UUID, status db.IntentStatus, detail string, payload []byte) {
	err := m.Q.InsertIntentEvent(ctx, db.InsertIntentEventParams{
		IntentID: id,
		Status:   status,
		Detail:   detail,
		Payload:  payload,
	})
	if err != nil {
		m.Log.Warn().Err(err).Str("status", string(status)).Msg("record intent event")
	}
}
