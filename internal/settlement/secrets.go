package settlement

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kiranalabs/backend-kirana/internal/tenant"
)

// PaymentType distinguishes what a gateway payment settles.
type PaymentType string

const (
	// PaymentTypeOrder is a shopper paying for a store order. Verified with
	// the tenant's own gateway secret.
	PaymentTypeOrder PaymentType = "order"
	// PaymentTypeUpgrade is a tenant paying the platform for a plan upgrade.
	// Verified with the platform's gateway secret.
	PaymentTypeUpgrade PaymentType = "upgrade"
)

// ParsePaymentType validates the type parameter of a callback.
func ParsePaymentType(s string) (PaymentType, error) {
	switch PaymentType(s) {
	case PaymentTypeOrder, PaymentTypeUpgrade:
		return PaymentType(s), nil
	}
	return "", fmt.Errorf("unknown payment type %q", s)
}

// SecretResolver picks the signing secret for a payment. Missing secrets are
// returned as errors, never as empty strings, so verification stays closed.
type SecretResolver struct {
	Tenants        *tenant.Service
	PlatformSecret string
}

// Resolve returns the secret to verify a payment of the given type.
func (r *SecretResolver) Resolve(ctx context.Context, typ PaymentType, tenantID pgtype.UUID) (string, error) {
	if r == nil {
		return "", ErrMissingSecret
	}
	switch typ {
	case PaymentTypeUpgrade:
		if r.PlatformSecret == "" {
			return "", ErrMissingSecret
		}
		return r.PlatformSecret, nil
	case PaymentTypeOrder:
		if r.Tenants == nil {
			return "", ErrMissingSecret
		}
		_, secret, err := r.Tenants.GatewayCredentials(ctx, tenantID)
		if err != nil {
			return "", err
		}
		if secret == "" {
			return "", ErrMissingSecret
		}
		return secret, nil
	}
	return "", fmt.Errorf("unknown payment type %q", typ)
}
