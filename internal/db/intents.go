package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const intentColumns = `id, tenant_id, cart_id, store_slug, draft_order_data, amount, currency, status,
gateway_order_id, gateway_payment_id, callback_handled, last_error, created_at, updated_at`

func scanIntent(row interface{ Scan(dest ...any) error }) (PaymentIntent, error) {
	var pi PaymentIntent
	err := row.Scan(&pi.ID, &pi.TenantID, &pi.CartID, &pi.StoreSlug, &pi.DraftOrderData,
		&pi.Amount, &pi.Currency, &pi.Status, &pi.GatewayOrderID, &pi.GatewayPaymentID,
		&pi.CallbackHandled, &pi.LastError, &pi.CreatedAt, &pi.UpdatedAt)
	return pi, err
}

const createPaymentIntent = `
INSERT INTO payment_intents (tenant_id, cart_id, store_slug, draft_order_data, amount, currency, status)
VALUES ($1, $2, $3, $4, $5, $6, 'initiated')
RETURNING ` + intentColumns

// CreatePaymentIntentParams captures a new checkout attempt.
type CreatePaymentIntentParams struct {
	TenantID       pgtype.UUID
	CartID         pgtype.UUID
	StoreSlug      string
	DraftOrderData []byte
	Amount         int64
	Currency       string
}

// CreatePaymentIntent stores a new intent in the initiated state.
func (q *Queries) CreatePaymentIntent(ctx context.Context, arg CreatePaymentIntentParams) (PaymentIntent, error) {
	row := q.db.QueryRow(ctx, createPaymentIntent,
		arg.TenantID, arg.CartID, arg.StoreSlug, arg.DraftOrderData, arg.Amount, arg.Currency)
	return scanIntent(row)
}

const getPaymentIntent = `
SELECT ` + intentColumns + `
FROM payment_intents
WHERE id = $1
`

// GetPaymentIntent loads an intent by id.
func (q *Queries) GetPaymentIntent(ctx context.Context, id pgtype.UUID) (PaymentIntent, error) {
	return scanIntent(q.db.QueryRow(ctx, getPaymentIntent, id))
}

const setIntentGatewayOrder = `
UPDATE payment_intents
SET gateway_order_id = $2, status = 'gateway_order_created', updated_at = now()
WHERE id = $1 AND status = 'initiated'
RETURNING ` + intentColumns

// SetIntentGatewayOrderParams binds the gateway's own order id to the intent.
type SetIntentGatewayOrderParams struct {
	ID             pgtype.UUID
	GatewayOrderID string
}

// SetIntentGatewayOrder transitions initiated -> gateway_order_created. Returns
// pgx.ErrNoRows when the intent has already left the initiated state.
func (q *Queries) SetIntentGatewayOrder(ctx context.Context, arg SetIntentGatewayOrderParams) (PaymentIntent, error) {
	return scanIntent(q.db.QueryRow(ctx, setIntentGatewayOrder, arg.ID, arg.GatewayOrderID))
}

const claimIntentCallback = `
UPDATE payment_intents
SET callback_handled = TRUE, status = 'processing', updated_at = now()
WHERE id = $1
  AND callback_handled = FALSE
  AND status IN ('initiated', 'gateway_order_created', 'failed')
RETURNING ` + intentColumns

// ClaimIntentCallback performs the callback_handled compare-and-set that grants
// exclusive settlement rights. Returns pgx.ErrNoRows when another delivery
// already claimed the intent or it reached a terminal state.
func (q *Queries) ClaimIntentCallback(ctx context.Context, id pgtype.UUID) (PaymentIntent, error) {
	return scanIntent(q.db.QueryRow(ctx, claimIntentCallback, id))
}

const releaseIntentClaim = `
UPDATE payment_intents
SET callback_handled = FALSE, status = 'failed', last_error = $2, updated_at = now()
WHERE id = $1 AND status = 'processing'
`

// ReleaseIntentClaimParams resets a claim after a failed materialization.
type ReleaseIntentClaimParams struct {
	ID        pgtype.UUID
	LastError string
}

// ReleaseIntentClaim clears callback_handled so a legitimate retry can settle later.
func (q *Queries) ReleaseIntentClaim(ctx context.Context, arg ReleaseIntentClaimParams) error {
	_, err := q.db.Exec(ctx, releaseIntentClaim, arg.ID, arg.LastError)
	return err
}

const markIntentPaid = `
UPDATE payment_intents
SET status = 'paid', gateway_payment_id = $2, last_error = NULL, updated_at = now()
WHERE id = $1 AND status = 'processing'
`

// MarkIntentPaidParams finalises a settled intent.
type MarkIntentPaidParams struct {
	ID               pgtype.UUID
	GatewayPaymentID string
}

// MarkIntentPaid transitions processing -> paid.
func (q *Queries) MarkIntentPaid(ctx context.Context, arg MarkIntentPaidParams) error {
	_, err := q.db.Exec(ctx, markIntentPaid, arg.ID, arg.GatewayPaymentID)
	return err
}

const markIntentFailed = `
UPDATE payment_intents
SET status = 'failed', last_error = $2, updated_at = now()
WHERE id = $1 AND status NOT IN ('paid', 'cancelled')
`

// MarkIntentFailedParams records a verification or validation failure.
type MarkIntentFailedParams struct {
	ID        pgtype.UUID
	LastError string
}

// MarkIntentFailed moves the intent to failed unless it already reached a terminal state.
func (q *Queries) MarkIntentFailed(ctx context.Context, arg MarkIntentFailedParams) error {
	_, err := q.db.Exec(ctx, markIntentFailed, arg.ID, arg.LastError)
	return err
}

const markIntentCancelled = `
UPDATE payment_intents
SET status = 'cancelled', updated_at = now()
WHERE id = $1 AND status NOT IN ('paid', 'cancelled')
`

// MarkIntentCancelled records that the gateway reported no payment took place.
func (q *Queries) MarkIntentCancelled(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, markIntentCancelled, id)
	return err
}

const insertIntentEvent = `
INSERT INTO payment_intent_events (intent_id, status, detail, payload)
VALUES ($1, $2, $3, $4)
`

// InsertIntentEventParams appends one transition to the intent audit trail.
type InsertIntentEventParams struct {
	IntentID pgtype.UUID
	Status   IntentStatus
	Detail   string
	Payload  []byte
}

// InsertIntentEvent appends an audit event for operator diagnosis.
func (q *Queries) InsertIntentEvent(ctx context.Context, arg InsertIntentEventParams) error {
	detail := pgtype.Text{String: arg.Detail, Valid: arg.Detail != ""}
	_, err := q.db.Exec(ctx, insertIntentEvent, arg.IntentID, arg.Status, detail, arg.Payload)
	return err
}

const listIntentEvents = `
SELECT id, intent_id, status, detail, payload, occurred_at
FROM payment_intent_events
WHERE intent_id = $1
ORDER BY occurred_at ASC
`

// ListIntentEvents returns the audit trail for one intent, oldest first.
func (q *Queries) ListIntentEvents(ctx context.Context, intentID pgtype.UUID) ([]PaymentIntentEvent, error) {
	rows, err := q.db.Query(ctx, listIntentEvents, intentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []PaymentIntentEvent
	for rows.Next() {
		var ev PaymentIntentEvent
		if err := rows.Scan(&ev.ID, &ev.IntentID, &ev.Status, &ev.Detail, &ev.Payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

const listPaymentIntents = `
SELECT ` + intentColumns + `
FROM payment_intents
WHERE tenant_id = $1
  AND ($2::text IS NULL OR status = $2::text)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

// ListPaymentIntentsParams filters the operator intent listing.
type ListPaymentIntentsParams struct {
	TenantID pgtype.UUID
	Status   pgtype.Text
	Limit    int32
	Offset   int32
}

// ListPaymentIntents returns tenant intents, newest first, optionally filtered by status.
func (q *Queries) ListPaymentIntents(ctx context.Context, arg ListPaymentIntentsParams) ([]PaymentIntent, error) {
	rows, err := q.db.Query(ctx, listPaymentIntents, arg.TenantID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var intents []PaymentIntent
	for rows.Next() {
		pi, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, pi)
	}
	return intents, rows.Err()
}
