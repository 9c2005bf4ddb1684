package security

import (
	"net/http"

	"github.com/kiranalabs/backend-kirana/internal/common"
)

// BodyLimit caps request payload size on the payment endpoints. Draft orders
// are small; anything larger than Max is rejected before JSON decoding.
type BodyLimit struct {
	Max int64
}

// Middleware rejects requests whose declared or actual body exceeds Max.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body exceeds the allowed size", nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}
