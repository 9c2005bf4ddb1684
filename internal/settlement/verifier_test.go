package settlement

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func signPayload(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAccepts(t *testing.T) {
	sig := signPayload("secret", "order_abc", "pay_xyz")
	require.NoError(t, VerifySignature("secret", "order_abc", "pay_xyz", sig))
}

func TestVerifySignatureRejectsTamperedFields(t *testing.T) {
	sig := signPayload("secret", "order_abc", "pay_xyz")

	cases := map[string]struct {
		orderID   string
		paymentID string
		signature string
	}{
		"order id changed":   {"order_other", "pay_xyz", sig},
		"payment id changed": {"order_abc", "pay_other", sig},
		"signature changed":  {"order_abc", "pay_xyz", signPayload("secret", "order_abc", "pay_other")},
		"wrong secret":       {"order_abc", "pay_xyz", signPayload("other", "order_abc", "pay_xyz")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := VerifySignature("secret", tc.orderID, tc.paymentID, tc.signature)
			require.ErrorIs(t, err, ErrSignatureMismatch)
		})
	}
}

func TestVerifySignatureFailsClosedWithoutSecret(t *testing.T) {
	// Even a signature that matches the empty-key HMAC must be rejected.
	sig := signPayload("", "order_abc", "pay_xyz")
	err := VerifySignature("", "order_abc", "pay_xyz", sig)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestVerifySignatureRejectsEmptyParams(t *testing.T) {
	require.ErrorIs(t, VerifySignature("secret", "", "pay_xyz", "sig"), ErrSignatureMismatch)
	require.ErrorIs(t, VerifySignature("secret", "order_abc", "", "sig"), ErrSignatureMismatch)
	require.ErrorIs(t, VerifySignature("secret", "order_abc", "pay_xyz", ""), ErrSignatureMismatch)
}
