package settlement

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kiranalabs/backend-kirana/internal/common"
	"github.com/kiranalabs/backend-kirana/internal/db"
	"github.com/kiranalabs/backend-kirana/internal/intent"
	"github.com/kiranalabs/backend-kirana/internal/obs"
	"github.com/kiranalabs/backend-kirana/internal/tenant"
)

// Handlers exposes the payment and settlement HTTP surface.
type Handlers struct {
	Svc     *Service
	Tenants *tenant.Service
	Intents *intent.Machine
	Log     zerolog.Logger
}

type createIntentRequest struct {
	Draft    json.RawMessage `json:"draft"`
	Currency string          `json:"currency"`
}

type createIntentResponse struct {
	IntentID string `json:"intentId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CreateIntent opens a payment intent for a validated draft order.
// POST /stores/{slug}/payments/intents
func (h *Handlers) CreateIntent(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Tenants == nil || h.Intents == nil {
		common.JSONError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "payments unavailable", nil)
		return
	}
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	ctx := common.WithTenantSlug(r.Context(), slug)

	t, err := h.Tenants.ResolveBySlug(ctx, slug)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Tenants.EnsureActive(t); err != nil {
		writeError(w, err)
		return
	}

	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to decode request", nil)
		return
	}
	d, err := h.Svc.Drafts.Parse(req.Draft)
	if err != nil {
		writeError(w, err)
		return
	}

	params := db.CreatePaymentIntentParams{
		TenantID:       t.ID,
		StoreSlug:      slug,
		DraftOrderData: req.Draft,
		Amount:         d.Total,
		Currency:       d.Currency,
	}
	if d.CartID != "" {
		cartID, err := db.UUIDFromString(d.CartID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_DRAFT", "invalid cart id", nil)
			return
		}
		params.CartID = cartID
	}
	pi, err := h.Intents.Create(ctx, params)
	if err != nil {
		h.Log.Error().Err(err).Str("store", slug).Msg("create payment intent")
		common.JSONError(w, http.StatusInternalServerError, "INTENT_CREATE_FAILED", "unable to create payment intent", nil)
		return
	}
	common.JSON(w, http.StatusCreated, createIntentResponse{
		IntentID: db.UUIDString(pi.ID),
		Amount:   pi.Amount,
		Currency: pi.Currency,
	})
}

type attachGatewayOrderRequest struct {
	GatewayOrderID string `json:"gatewayOrderId"`
}

// AttachGatewayOrder binds the gateway's order id to an initiated intent.
// POST /stores/{slug}/payments/intents/{intentID}/gateway-order
func (h *Handlers) AttachGatewayOrder(w http.ResponseWriter, r *http.Request) {
	if h.Intents == nil {
		common.JSONError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "payments unavailable", nil)
		return
	}
	var req attachGatewayOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.GatewayOrderID) == "" {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "gatewayOrderId is required", nil)
		return
	}
	id, err := db.UUIDFromString(chi.URLParam(r, "intentID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_INTENT", "invalid payment intent id", nil)
		return
	}
	pi, err := h.Intents.AttachGatewayOrder(r.Context(), id, strings.TrimSpace(req.GatewayOrderID))
	if err != nil {
		if errors.Is(err, intent.ErrWrongState) {
			common.JSONError(w, http.StatusConflict, "INTENT_STATE", "intent already has a gateway order", nil)
			return
		}
		h.Log.Error().Err(err).Msg("attach gateway order")
		common.JSONError(w, http.StatusInternalServerError, "INTENT_UPDATE_FAILED", "unable to update payment intent", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{
		"intentId": db.UUIDString(pi.ID),
		"status":   string(pi.Status),
	})
}

type verifyRequest struct {
	IntentID         string `json:"intentId"`
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature"`
}

// Verify settles an order payment reported directly by the storefront.
// POST /stores/{slug}/payments/verify
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Tenants == nil {
		common.JSONError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "payments unavailable", nil)
		return
	}
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	ctx := common.WithTenantSlug(r.Context(), slug)

	t, err := h.Tenants.ResolveBySlug(ctx, slug)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Tenants.EnsureActive(t); err != nil {
		recordSettlement("verify", "order", err)
		writeError(w, err)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to decode request", nil)
		return
	}
	if req.IntentID == "" || req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		common.JSONError(w, http.StatusBadRequest, "MISSING_PARAMS", "intentId and gateway parameters are required", nil)
		return
	}

	res, err := h.Svc.Settle(ctx, SettleInput{
		IntentID:         req.IntentID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		recordSettlement("verify", "order", err)
		writeError(w, err)
		return
	}
	obs.SettlementTotal.WithLabelValues("verify", "order", "ok").Inc()
	common.JSON(w, http.StatusOK, res)
}

// GetIntent reports an intent's public status for storefront polling.
// GET /stores/{slug}/payments/intents/{intentID}
func (h *Handlers) GetIntent(w http.ResponseWriter, r *http.Request) {
	if h.Intents == nil {
		common.JSONError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "payments unavailable", nil)
		return
	}
	id, err := db.UUIDFromString(chi.URLParam(r, "intentID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_INTENT", "invalid payment intent id", nil)
		return
	}
	pi, err := h.Intents.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, intent.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "INTENT_NOT_FOUND", "payment intent not found", nil)
			return
		}
		h.Log.Error().Err(err).Msg("load payment intent")
		common.JSONError(w, http.StatusInternalServerError, "INTENT_FETCH_FAILED", "unable to load payment intent", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"intentId": db.UUIDString(pi.ID),
		"status":   string(pi.Status),
		"amount":   pi.Amount,
		"currency": pi.Currency,
	})
}

func recordSettlement(path, typ string, err error) {
	result := "error"
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case "SIGNATURE_INVALID":
			obs.SignatureRejectTotal.WithLabelValues(path).Inc()
			result = "rejected"
		case "INVALID_DRAFT", "MISSING_PARAMS", "INVALID_INTENT", "GATEWAY_ORDER_MISMATCH":
			result = "invalid"
		case "SETTLEMENT_IN_PROGRESS", "INTENT_CANCELLED", "INSUFFICIENT_STOCK":
			result = "conflict"
		}
	}
	obs.SettlementTotal.WithLabelValues(path, typ, result).Inc()
}

func writeError(w http.ResponseWriter, err error) {
	common.JSONAppError(w, err)
}
