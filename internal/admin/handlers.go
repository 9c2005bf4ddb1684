package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/kiranalabs/backend-kirana/internal/common"
	"github.com/kiranalabs/backend-kirana/internal/db"
	"github.com/kiranalabs/backend-kirana/internal/intent"
)

// Handlers provides the operator API for inspecting and unblocking settlements.
type Handlers struct {
	Q            *db.Queries
	Intents      *intent.Machine
	DefaultLimit int
	MaxLimit     int
	Log          zerolog.Logger
}

type intentSummary struct {
	IntentID         string `json:"intentId"`
	StoreSlug        string `json:"storeSlug"`
	Status           string `json:"status"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	GatewayOrderID   string `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string `json:"gatewayPaymentId,omitempty"`
	CallbackHandled  bool   `json:"callbackHandled"`
	LastError        string `json:"lastError,omitempty"`
}

func toSummary(pi db.PaymentIntent) intentSummary {
	return intentSummary{
		IntentID:         db.UUIDString(pi.ID),
		StoreSlug:        pi.StoreSlug,
		Status:           string(pi.Status),
		Amount:           pi.Amount,
		Currency:         pi.Currency,
		GatewayOrderID:   pi.GatewayOrderID.String,
		GatewayPaymentID: pi.GatewayPaymentID.String,
		CallbackHandled:  pi.CallbackHandled,
		LastError:        pi.LastError.String,
	}
}

// ListIntents lists a tenant's payment intents, optionally filtered by status.
// GET /admin/tenants/{tenantID}/intents?status=&limit=&offset=
func (h *Handlers) ListIntents(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queries not configured", nil)
		return
	}
	tenantID, err := db.UUIDFromString(chi.URLParam(r, "tenantID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant id", nil)
		return
	}
	limit, offset := common.ParseLimitOffset(r, h.DefaultLimit, h.MaxLimit)
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	intents, err := h.Q.ListPaymentIntents(r.Context(), db.ListPaymentIntentsParams{
		TenantID: tenantID,
		Status:   db.TextOrNull(status),
		Limit:    int32(limit),
		Offset:   int32(offset),
	})
	if err != nil {
		h.Log.Error().Err(err).Msg("list payment intents")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list intents", nil)
		return
	}
	out := make([]intentSummary, 0, len(intents))
	for _, pi := range intents {
		out = append(out, toSummary(pi))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"intents": out,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetIntent returns one intent with its full audit trail.
// GET /admin/intents/{intentID}
func (h *Handlers) GetIntent(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queries not configured", nil)
		return
	}
	id, err := db.UUIDFromString(chi.URLParam(r, "intentID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid intent id", nil)
		return
	}
	pi, err := h.Q.GetPaymentIntent(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "intent not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load intent", nil)
		return
	}
	events, err := h.Q.ListIntentEvents(r.Context(), id)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load intent events", nil)
		return
	}
	trail := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		entry := map[string]any{
			"status":     string(ev.Status),
			"occurredAt": ev.OccurredAt.Time,
		}
		if ev.Detail.Valid {
			entry["detail"] = ev.Detail.String
		}
		trail = append(trail, entry)
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"intent": toSummary(pi),
		"events": trail,
	})
}

// ReleaseClaim force-releases a stuck processing claim so the payment can be
// retried. Meant for intents orphaned by a crash mid-settlement.
// POST /admin/intents/{intentID}/release
func (h *Handlers) ReleaseClaim(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil || h.Intents == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queries not configured", nil)
		return
	}
	id, err := db.UUIDFromString(chi.URLParam(r, "intentID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid intent id", nil)
		return
	}
	pi, err := h.Q.GetPaymentIntent(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "intent not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load intent", nil)
		return
	}
	if pi.Status != db.IntentStatusProcessing {
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "intent is not processing", nil)
		return
	}
	if err := h.Intents.Release(r.Context(), id, "released by operator"); err != nil {
		h.Log.Error().Err(err).Msg("operator release claim")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to release claim", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{
		"intentId": db.UUIDString(id),
		"status":   string(db.IntentStatusFailed),
	})
}
