package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kiranalabs/backend-kirana/internal/common"
	"github.com/kiranalabs/backend-kirana/internal/db"
)

// Querier is the subset of database queries the tenant service needs.
type Querier interface {
	GetTenantBySlug(ctx context.Context, slug string) (db.Tenant, error)
	GetTenantByID(ctx context.Context, id pgtype.UUID) (db.Tenant, error)
	GetTenantIntegration(ctx context.Context, tenantID pgtype.UUID) (db.TenantIntegration, error)
	UpgradeTenantPlan(ctx context.Context, arg db.UpgradeTenantPlanParams) error
	InsertPlanUpgrade(ctx context.Context, arg db.InsertPlanUpgradeParams) error
}

// Service resolves tenants and their gateway credentials.
type Service struct {
	Q   Querier
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ResolveBySlug loads a tenant by its store slug.
func (s *Service) ResolveBySlug(ctx context.Context, slug string) (db.Tenant, error) {
	if s == nil || s.Q == nil {
		return db.Tenant{}, errors.New("tenant service not configured")
	}
	t, err := s.Q.GetTenantBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Tenant{}, common.NewAppError("STORE_NOT_FOUND", "store not found", http.StatusNotFound, err)
		}
		return db.Tenant{}, fmt.Errorf("load tenant %q: %w", slug, err)
	}
	return t, nil
}

// ResolveByID loads a tenant by primary key.
func (s *Service) ResolveByID(ctx context.Context, id pgtype.UUID) (db.Tenant, error) {
	if s == nil || s.Q == nil {
		return db.Tenant{}, errors.New("tenant service not configured")
	}
	t, err := s.Q.GetTenantByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Tenant{}, common.NewAppError("STORE_NOT_FOUND", "store not found", http.StatusNotFound, err)
		}
		return db.Tenant{}, fmt.Errorf("load tenant: %w", err)
	}
	return t, nil
}

// EnsureActive rejects tenants whose subscription no longer permits taking payments.
func (s *Service) EnsureActive(t db.Tenant) error {
	switch t.Status {
	case db.TenantStatusSuspended:
		return common.NewAppError("TENANT_SUSPENDED", "store is suspended", http.StatusForbidden, nil)
	case db.TenantStatusExpired:
		return common.NewAppError("SUBSCRIPTION_EXPIRED", "store subscription has expired", http.StatusForbidden, nil)
	}
	now := s.now()
	if t.Plan == "trial" && t.TrialEndsAt.Valid && t.TrialEndsAt.Time.Before(now) {
		return common.NewAppError("SUBSCRIPTION_EXPIRED", "store trial has ended", http.StatusForbidden, nil)
	}
	if t.Plan != "trial" && t.PlanExpiresAt.Valid && t.PlanExpiresAt.Time.Before(now) {
		return common.NewAppError("SUBSCRIPTION_EXPIRED", "store subscription has expired", http.StatusForbidden, nil)
	}
	return nil
}

// GatewayCredentials returns the tenant's Razorpay key pair. A tenant without a
// configured secret cannot verify payments, so the lookup fails rather than
// returning empty credentials.
func (s *Service) GatewayCredentials(ctx context.Context, tenantID pgtype.UUID) (keyID, secret string, err error) {
	if s == nil || s.Q == nil {
		return "", "", errors.New("tenant service not configured")
	}
	ti, err := s.Q.GetTenantIntegration(ctx, tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", common.NewAppError("PAYMENTS_NOT_CONFIGURED", "payment gateway is not configured for this store", http.StatusServiceUnavailable, err)
		}
		return "", "", fmt.Errorf("load tenant integration: %w", err)
	}
	if !ti.RazorpayKeySecret.Valid || ti.RazorpayKeySecret.String == "" {
		return "", "", common.NewAppError("PAYMENTS_NOT_CONFIGURED", "payment gateway is not configured for this store", http.StatusServiceUnavailable, nil)
	}
	return ti.RazorpayKeyID.String, ti.RazorpayKeySecret.String, nil
}

// ApplyUpgradeParams describes a verified plan upgrade payment.
type ApplyUpgradeParams struct {
	TenantID         pgtype.UUID
	Plan             string
	Amount           int64
	GatewayOrderID   string
	GatewayPaymentID string
	Validity         time.Duration
}

// ApplyUpgrade records the upgrade payment and extends the tenant's plan.
// Replays keyed on the gateway payment id are absorbed by the upgrade ledger.
func (s *Service) ApplyUpgrade(ctx context.Context, arg ApplyUpgradeParams) error {
	if s == nil || s.Q == nil {
		return errors.New("tenant service not configured")
	}
	if err := s.Q.InsertPlanUpgrade(ctx, db.InsertPlanUpgradeParams{
		TenantID:         arg.TenantID,
		Plan:             arg.Plan,
		Amount:           arg.Amount,
		GatewayOrderID:   arg.GatewayOrderID,
		GatewayPaymentID: arg.GatewayPaymentID,
	}); err != nil {
		return fmt.Errorf("record plan upgrade: %w", err)
	}
	validity := arg.Validity
	if validity <= 0 {
		validity = 30 * 24 * time.Hour
	}
	expires := pgtype.Timestamptz{Time: s.now().Add(validity), Valid: true}
	if err := s.Q.UpgradeTenantPlan(ctx, db.UpgradeTenantPlanParams{
		TenantID:      arg.TenantID,
		Plan:          arg.Plan,
		PlanExpiresAt: expires,
	}); err != nil {
		return fmt.Errorf("apply plan upgrade: %w", err)
	}
	return nil
}
