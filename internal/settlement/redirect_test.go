package settlement

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kiranalabs/backend-kirana/internal/db"
	"github.com/kiranalabs/backend-kirana/internal/intent"
)

func newRedirect(f serviceFixture) *Redirect {
	return &Redirect{
		Svc:          f.svc,
		AppOrigin:    "https://app.kirana.example",
		NativeScheme: "kirana",
		Log:          zerolog.Nop(),
	}
}

func callbackForm(t *testing.T, h *Redirect, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payments/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func locationURL(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return loc
}

func TestCallbackMissingGatewayParamsCancelsIntent(t *testing.T) {
	f := newServiceFixture(t, claimedIntent(t, draftJSON(t, nil)))
	h := newRedirect(f)

	rec := callbackForm(t, h, url.Values{
		"intent_id": {testIntentID},
	})
	loc := locationURL(t, rec)
	require.Equal(t, "/payment-callback", loc.Path)
	require.Equal(t, "cancelled", loc.Query().Get("status"))
	require.Equal(t, "order", loc.Query().Get("type"))
	require.Equal(t, []string{"gateway reported no payment"}, f.intents.cancelled)
}

func TestCallbackSettlesOrderAndRedirectsWeb(t *testing.T) {
	f := newServiceFixture(t, claimedIntent(t, draftJSON(t, nil)))
	h := newRedirect(f)
	sig := signPayload("secret", "order_abc", "pay_xyz")

	rec := callbackForm(t, h, url.Values{
		"intent_id":           {testIntentID},
		"razorpay_order_id":   {"order_abc"},
		"razorpay_payment_id": {"pay_xyz"},
		"razorpay_signature":  {sig},
	})
	loc := locationURL(t, rec)
	require.Equal(t, "https", loc.Scheme)
	require.Equal(t, "app.kirana.example", loc.Host)
	require.Equal(t, "success", loc.Query().Get("status"))
	require.Equal(t, "KIR-1001", loc.Query().Get("order"))
}

func TestCallbackNeverLeaksSignatureOrSecrets(t *testing.T) {
	sig := signPayload("secret", "order_abc", "pay_xyz")

	for _, form := range []url.Values{
		{
			"intent_id":           {testIntentID},
			"razorpay_order_id":   {"order_abc"},
			"razorpay_payment_id": {"pay_xyz"},
			"razorpay_signature":  {sig},
		},
		{
			"intent_id":           {testIntentID},
			"razorpay_order_id":   {"order_abc"},
			"razorpay_payment_id": {"pay_xyz"},
			"razorpay_signature":  {"tampered"},
		},
	} {
		rec := callbackForm(t, newRedirect(newServiceFixture(t, claimedIntent(t, draftJSON(t, nil)))), form)
		location := rec.Header().Get("Location")
		require.NotContains(t, location, sig)
		require.NotContains(t, location, "signature")
		require.NotContains(t, location, "secret")
	}
}

func TestCallbackFailureRedirectsWithCodeOnly(t *testing.T) {
	f := newServiceFixture(t, claimedIntent(t, draftJSON(t, nil)))
	h := newRedirect(f)

	rec := callbackForm(t, h, url.Values{
		"intent_id":           {testIntentID},
		"razorpay_order_id":   {"order_abc"},
		"razorpay_payment_id": {"pay_xyz"},
		"razorpay_signature":  {"tampered"},
	})
	loc := locationURL(t, rec)
	require.Equal(t, "failed", loc.Query().Get("status"))
	require.Equal(t, "SIGNATURE_INVALID", loc.Query().Get("code"))
}

func TestCallbackNativeDeepLink(t *testing.T) {
	f := newServiceFixture(t, claimedIntent(t, draftJSON(t, nil)))
	h := newRedirect(f)
	sig := signPayload("secret", "order_abc", "pay_xyz")

	rec := callbackForm(t, h, url.Values{
		"intent_id":           {testIntentID},
		"is_native":           {"true"},
		"razorpay_order_id":   {"order_abc"},
		"razorpay_payment_id": {"pay_xyz"},
		"razorpay_signature":  {sig},
	})
	loc := locationURL(t, rec)
	require.Equal(t, "kirana", loc.Scheme)
	require.Equal(t, "payment", loc.Host)
	require.Equal(t, "/order-success", loc.Path)
	require.Equal(t, "order", loc.Query().Get("type"))
	require.Equal(t, "success", loc.Query().Get("status"))
}

func TestCallbackUpgradeSuccess(t *testing.T) {
	f := newServiceFixture(t, db.PaymentIntent{})
	f.svc.Secrets = &stubSecrets{secret: "platform-secret"}
	h := newRedirect(f)
	sig := signPayload("platform-secret", "order_up", "pay_up")

	rec := callbackForm(t, h, url.Values{
		"type":                {"upgrade"},
		"store":               {"fresh-mart"},
		"plan":                {"pro"},
		"amount":              {"99900"},
		"razorpay_order_id":   {"order_up"},
		"razorpay_payment_id": {"pay_up"},
		"razorpay_signature":  {sig},
	})
	loc := locationURL(t, rec)
	require.Equal(t, "upgrade", loc.Query().Get("type"))
	require.Equal(t, "success", loc.Query().Get("status"))
	require.Len(t, f.tenants.upgrades, 1)
}

func TestCallbackGetQueryParamsAccepted(t *testing.T) {
	f := newServiceFixture(t, claimedIntent(t, draftJSON(t, nil)))
	h := newRedirect(f)
	sig := signPayload("secret", "order_abc", "pay_xyz")

	q := url.Values{
		"intent_id":           {testIntentID},
		"razorpay_order_id":   {"order_abc"},
		"razorpay_payment_id": {"pay_xyz"},
		"razorpay_signature":  {sig},
	}
	req := httptest.NewRequest(http.MethodGet, "/payments/callback?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	loc := locationURL(t, rec)
	require.Equal(t, "success", loc.Query().Get("status"))
}

func TestCallbackReplayGuardMarksDuplicates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newServiceFixture(t, claimedIntent(t, draftJSON(t, nil)))
	h := newRedirect(f)
	h.Replay = client
	h.ReplayTTL = time.Hour
	sig := signPayload("secret", "order_abc", "pay_xyz")
	form := url.Values{
		"intent_id":           {testIntentID},
		"razorpay_order_id":   {"order_abc"},
		"razorpay_payment_id": {"pay_xyz"},
		"razorpay_signature":  {sig},
	}

	first := callbackForm(t, h, form)
	require.Equal(t, http.StatusFound, first.Code)
	require.True(t, mr.Exists("settlement:callback:pay_xyz"))

	// The duplicate still resolves through the idempotent settlement path.
	f.intents.claimErr = intent.ErrAlreadyClaimed
	f.intents.getIntent = claimedIntent(t, draftJSON(t, nil))
	f.intents.getIntent.Status = db.IntentStatusPaid
	f.svc.Lookup = &stubLookup{ref: db.OrderRef{ID: mustUUID(t, testOrderUUID), OrderNumber: "KIR-1001"}}

	second := callbackForm(t, h, form)
	loc := locationURL(t, second)
	require.Equal(t, "success", loc.Query().Get("status"))
	require.Equal(t, "KIR-1001", loc.Query().Get("order"))
}
