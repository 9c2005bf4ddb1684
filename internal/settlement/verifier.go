package settlement

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrMissingSecret reports that no signing secret is available. Verification
// fails closed: no secret means no payment can be accepted.
var ErrMissingSecret = errors.New("no signing secret configured")

// ErrSignatureMismatch reports a signature that does not match the payload.
var ErrSignatureMismatch = errors.New("signature verification failed")

// VerifySignature checks the gateway's HMAC-SHA256 signature over
// "<gatewayOrderID>|<gatewayPaymentID>" in lowercase hex. Comparison is
// constant time.
func VerifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return ErrSignatureMismatch
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
