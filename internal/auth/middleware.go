package auth

import (
	"net/http"
	"strings"

	"github.com/kiranalabs/backend-kirana/internal/common"
)

type contextKey string

const operatorKey contextKey = "auth.operator"

// Middleware guards the admin API.
type Middleware struct {
	Service *Service
}

// RequireAdmin rejects requests without a valid admin bearer token.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Service == nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "admin auth not configured", nil)
			return
		}
		token := bearerToken(r)
		if token == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		operator, err := m.Service.ParseAdminToken(token)
		if err != nil {
			common.JSONAppError(w, err)
			return
		}
		ctx := r.Context()
		ctx = contextWithOperator(ctx, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
