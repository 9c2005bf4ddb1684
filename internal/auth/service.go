package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/kiranalabs/backend-kirana/internal/common"
)

// Service authenticates platform operators for the admin API. Admin tokens
// are HS256 JWTs minted by the platform dashboard with an operator role claim.
type Service struct {
	secret    []byte
	validator TokenValidator
	now       func() time.Time
}

// NewService builds an admin token service around a shared HS256 secret.
func NewService(secret, issuer, audience string) *Service {
	return &Service{
		secret: []byte(secret),
		validator: TokenValidator{
			Issuer:       issuer,
			Audience:     audience,
			ClockSkew:    30 * time.Second,
			Algorithm:    jwa.HS256,
			RequiredRole: "admin",
		},
		now: time.Now,
	}
}

// ParseAdminToken verifies the token and returns the operator subject.
func (s *Service) ParseAdminToken(raw string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", common.NewAppError("UNAUTHORIZED", "admin auth not configured", http.StatusUnauthorized, errors.New("auth: missing admin secret"))
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, errors.New("auth: empty token"))
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	subject := parsed.Subject()
	if subject == "" {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, errors.New("auth: token missing subject"))
	}
	return subject, nil
}

func extractTokenAlgorithm(raw string) (jwa.SignatureAlgorithm, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return "", errors.New("auth: malformed token")
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("auth: decode token header: %w", err)
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return "", fmt.Errorf("auth: parse token header: %w", err)
	}
	if header.Alg == "" {
		return "", errors.New("auth: token missing algorithm")
	}
	return jwa.SignatureAlgorithm(header.Alg), nil
}
