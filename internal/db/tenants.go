package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getTenantBySlug = `
SELECT id, slug, name, business_type, status, plan, plan_expires_at, trial_ends_at, created_at, updated_at
FROM tenants
WHERE slug = $1
`

// GetTenantBySlug loads a tenant by its storefront slug.
func (q *Queries) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	row := q.db.QueryRow(ctx, getTenantBySlug, slug)
	var t Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.BusinessType, &t.Status, &t.Plan,
		&t.PlanExpiresAt, &t.TrialEndsAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

const getTenantByID = `
SELECT id, slug, name, business_type, status, plan, plan_expires_at, trial_ends_at, created_at, updated_at
FROM tenants
WHERE id = $1
`

// GetTenantByID loads a tenant by primary key.
func (q *Queries) GetTenantByID(ctx context.Context, id pgtype.UUID) (Tenant, error) {
	row := q.db.QueryRow(ctx, getTenantByID, id)
	var t Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.BusinessType, &t.Status, &t.Plan,
		&t.PlanExpiresAt, &t.TrialEndsAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

const getTenantIntegration = `
SELECT tenant_id, razorpay_key_id, razorpay_key_secret, updated_at
FROM tenant_integrations
WHERE tenant_id = $1
`

// GetTenantIntegration loads the gateway credentials configured for a tenant.
func (q *Queries) GetTenantIntegration(ctx context.Context, tenantID pgtype.UUID) (TenantIntegration, error) {
	row := q.db.QueryRow(ctx, getTenantIntegration, tenantID)
	var ti TenantIntegration
	err := row.Scan(&ti.TenantID, &ti.RazorpayKeyID, &ti.RazorpayKeySecret, &ti.UpdatedAt)
	return ti, err
}

const upgradeTenantPlan = `
UPDATE tenants
SET plan = $2, plan_expires_at = $3, status = 'active', updated_at = now()
WHERE id = $1
`

// UpgradeTenantPlanParams carries the fields of a settled plan upgrade.
type UpgradeTenantPlanParams struct {
	TenantID      pgtype.UUID
	Plan          string
	PlanExpiresAt pgtype.Timestamptz
}

// UpgradeTenantPlan applies a paid plan upgrade to the tenant row.
func (q *Queries) UpgradeTenantPlan(ctx context.Context, arg UpgradeTenantPlanParams) error {
	_, err := q.db.Exec(ctx, upgradeTenantPlan, arg.TenantID, arg.Plan, arg.PlanExpiresAt)
	return err
}

const insertPlanUpgrade = `
INSERT INTO plan_upgrades (tenant_id, plan, amount, gateway_order_id, gateway_payment_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (gateway_payment_id) DO NOTHING
`

// InsertPlanUpgradeParams records an upgrade settlement for audit.
type InsertPlanUpgradeParams struct {
	TenantID         pgtype.UUID
	Plan             string
	Amount           int64
	GatewayOrderID   string
	GatewayPaymentID string
}

// InsertPlanUpgrade appends a plan upgrade audit row; duplicate gateway payments are ignored.
func (q *Queries) InsertPlanUpgrade(ctx context.Context, arg InsertPlanUpgradeParams) error {
	_, err := q.db.Exec(ctx, insertPlanUpgrade, arg.TenantID, arg.Plan, arg.Amount, arg.GatewayOrderID, arg.GatewayPaymentID)
	return err
}
