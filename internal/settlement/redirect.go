package settlement

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kiranalabs/backend-kirana/internal/common"
	"github.com/kiranalabs/backend-kirana/internal/obs"
)

// Redirect handles the gateway's browser callback. The shopper lands here
// after paying; settlement happens server side and the browser is sent back
// to the storefront (or native app) with nothing but the outcome. Gateway
// signatures and secrets never appear in the redirect target.
type Redirect struct {
	Svc          *Service
	Replay       *redis.Client
	ReplayTTL    time.Duration
	AppOrigin    string
	NativeScheme string
	Log          zerolog.Logger
}

// Handle processes GET (query) and POST (form) callbacks.
// {GET,POST} /payments/callback
func (h *Redirect) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "payments unavailable", nil)
		return
	}
	params := callbackParams(r)

	typ, err := ParsePaymentType(valueOr(params.Get("type"), string(PaymentTypeOrder)))
	if err != nil {
		typ = PaymentTypeOrder
	}
	isNative := isTruthy(params.Get("is_native"))

	gatewayOrderID := strings.TrimSpace(params.Get("razorpay_order_id"))
	gatewayPaymentID := strings.TrimSpace(params.Get("razorpay_payment_id"))
	signature := strings.TrimSpace(params.Get("razorpay_signature"))

	// The gateway omits its parameters when the shopper abandoned the
	// payment. That is a cancellation, not an error.
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		if typ == PaymentTypeOrder {
			if intentID := params.Get("intent_id"); intentID != "" {
				if err := h.Svc.Cancel(r.Context(), intentID, "gateway reported no payment"); err != nil {
					h.Log.Warn().Err(err).Str("intent_id", intentID).Msg("cancel abandoned intent")
				}
			}
		}
		obs.SettlementTotal.WithLabelValues("callback", string(typ), "cancelled").Inc()
		h.redirect(w, r, isNative, typ, "cancelled", url.Values{})
		return
	}

	h.checkReplay(r, gatewayPaymentID)

	switch typ {
	case PaymentTypeUpgrade:
		h.handleUpgrade(w, r, params, isNative, gatewayOrderID, gatewayPaymentID, signature)
	default:
		h.handleOrder(w, r, params, isNative, gatewayOrderID, gatewayPaymentID, signature)
	}
}

func (h *Redirect) handleOrder(w http.ResponseWriter, r *http.Request, params url.Values, isNative bool, gatewayOrderID, gatewayPaymentID, signature string) {
	res, err := h.Svc.Settle(r.Context(), SettleInput{
		IntentID:         params.Get("intent_id"),
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
		Signature:        signature,
	})
	if err != nil {
		recordSettlement("callback", "order", err)
		h.Log.Warn().Err(err).Str("intent_id", params.Get("intent_id")).Msg("callback settlement failed")
		extra := url.Values{}
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			extra.Set("code", appErr.Code)
		}
		h.redirect(w, r, isNative, PaymentTypeOrder, "failed", extra)
		return
	}
	obs.SettlementTotal.WithLabelValues("callback", "order", "ok").Inc()
	extra := url.Values{}
	if res.OrderNumber != "" {
		extra.Set("order", res.OrderNumber)
	}
	h.redirect(w, r, isNative, PaymentTypeOrder, "success", extra)
}

func (h *Redirect) handleUpgrade(w http.ResponseWriter, r *http.Request, params url.Values, isNative bool, gatewayOrderID, gatewayPaymentID, signature string) {
	amount, _ := strconv.ParseInt(params.Get("amount"), 10, 64)
	err := h.Svc.SettleUpgrade(r.Context(), UpgradeInput{
		StoreSlug:        strings.TrimSpace(params.Get("store")),
		Plan:             strings.TrimSpace(params.Get("plan")),
		Amount:           amount,
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
		Signature:        signature,
	})
	if err != nil {
		recordSettlement("callback", "upgrade", err)
		h.Log.Warn().Err(err).Str("store", params.Get("store")).Msg("upgrade settlement failed")
		extra := url.Values{}
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			extra.Set("code", appErr.Code)
		}
		h.redirect(w, r, isNative, PaymentTypeUpgrade, "failed", extra)
		return
	}
	obs.SettlementTotal.WithLabelValues("callback", "upgrade", "ok").Inc()
	h.redirect(w, r, isNative, PaymentTypeUpgrade, "success", url.Values{})
}

// checkReplay records duplicate callback deliveries. Settlement itself is
// idempotent; the guard exists for visibility, not correctness.
func (h *Redirect) checkReplay(r *http.Request, gatewayPaymentID string) {
	if h.Replay == nil || h.ReplayTTL <= 0 {
		return
	}
	key := "settlement:callback:" + gatewayPaymentID
	fresh, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
	if err != nil {
		h.Log.Warn().Err(err).Msg("replay guard unavailable")
		return
	}
	if !fresh {
		obs.CallbackReplayTotal.Inc()
		h.Log.Info().
			Str("payment_id", gatewayPaymentID).
			Str("client_ip", common.ClientIP(r)).
			Msg("duplicate gateway callback")
	}
}

// redirect sends the shopper back to the app. Native clients get a deep link,
// web clients a storefront URL. Only the outcome travels in the target.
func (h *Redirect) redirect(w http.ResponseWriter, r *http.Request, isNative bool, typ PaymentType, status string, extra url.Values) {
	extra.Set("type", string(typ))
	extra.Set("status", status)
	var target string
	if isNative && h.NativeScheme != "" {
		u := url.URL{
			Scheme:   h.NativeScheme,
			Host:     "payment",
			Path:     "/" + string(typ) + "-" + status,
			RawQuery: extra.Encode(),
		}
		target = u.String()
	} else {
		base := strings.TrimRight(h.AppOrigin, "/")
		target = base + "/payment-callback?" + extra.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func callbackParams(r *http.Request) url.Values {
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		return r.Form
	}
	return r.URL.Query()
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
