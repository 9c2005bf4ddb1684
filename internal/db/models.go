package db

import "github.com/jackc/pgx/v5/pgtype"

// TenantStatus enumerates the lifecycle states of a tenant.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusExpired   TenantStatus = "expired"
)

// BusinessType distinguishes the storefront flavours a tenant can run.
type BusinessType string

const (
	BusinessTypeEcommerce BusinessType = "ecommerce"
	BusinessTypeGrocery   BusinessType = "grocery"
)

// IntentStatus enumerates payment intent lifecycle states.
type IntentStatus string

const (
	IntentStatusInitiated           IntentStatus = "initiated"
	IntentStatusGatewayOrderCreated IntentStatus = "gateway_order_created"
	IntentStatusProcessing          IntentStatus = "processing"
	IntentStatusPaid                IntentStatus = "paid"
	IntentStatusFailed              IntentStatus = "failed"
	IntentStatusCancelled           IntentStatus = "cancelled"
)

// Tenant is one store/business using the platform.
type Tenant struct {
	ID            pgtype.UUID
	Slug          string
	Name          string
	BusinessType  BusinessType
	Status        TenantStatus
	Plan          string
	PlanExpiresAt pgtype.Timestamptz
	TrialEndsAt   pgtype.Timestamptz
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

// TenantIntegration stores the per-tenant payment gateway credentials.
type TenantIntegration struct {
	TenantID          pgtype.UUID
	RazorpayKeyID     pgtype.Text
	RazorpayKeySecret pgtype.Text
	UpdatedAt         pgtype.Timestamptz
}

// PaymentIntent tracks one checkout payment attempt.
type PaymentIntent struct {
	ID               pgtype.UUID
	TenantID         pgtype.UUID
	CartID           pgtype.UUID
	StoreSlug        string
	DraftOrderData   []byte
	Amount           int64
	Currency         string
	Status           IntentStatus
	GatewayOrderID   pgtype.Text
	GatewayPaymentID pgtype.Text
	CallbackHandled  bool
	LastError        pgtype.Text
	CreatedAt        pgtype.Timestamptz
	UpdatedAt        pgtype.Timestamptz
}

// PaymentIntentEvent is one row of the append-only intent audit trail.
type PaymentIntentEvent struct {
	ID         pgtype.UUID
	IntentID   pgtype.UUID
	Status     IntentStatus
	Detail     pgtype.Text
	Payload    []byte
	OccurredAt pgtype.Timestamptz
}

// OrderRef identifies an existing order without loading the full row.
type OrderRef struct {
	ID          pgtype.UUID
	OrderNumber string
}

// Order is the durable financial record produced by settlement.
type Order struct {
	ID               pgtype.UUID
	TenantID         pgtype.UUID
	OrderNumber      string
	CustomerName     string
	CustomerPhone    pgtype.Text
	CustomerEmail    pgtype.Text
	ShippingAddress  []byte
	Subtotal         int64
	DiscountTotal    int64
	DeliveryFee      int64
	Total            int64
	Currency         string
	PaymentMethod    string
	PaymentStatus    string
	FulfillmentState string
	DeliveryZone     pgtype.Text
	DeliverySlot     pgtype.Text
	DeliveryOption   pgtype.Text
	CouponID         pgtype.UUID
	CouponCode       pgtype.Text
	GatewayOrderID   pgtype.Text
	GatewayPaymentID pgtype.Text
	CartID           pgtype.UUID
	CreatedAt        pgtype.Timestamptz
}

// OrderItem is a single purchased line on an order.
type OrderItem struct {
	ID        pgtype.UUID
	OrderID   pgtype.UUID
	ProductID pgtype.UUID
	VariantID pgtype.UUID
	Name      string
	Qty       int32
	UnitPrice int64
	LineTotal int64
}

// Coupon is a tenant discount code with usage accounting.
type Coupon struct {
	ID        pgtype.UUID
	TenantID  pgtype.UUID
	Code      string
	UsedCount int32
	Active    bool
}

// CouponRedemption links a coupon to the order it discounted.
type CouponRedemption struct {
	ID         pgtype.UUID
	CouponID   pgtype.UUID
	OrderID    pgtype.UUID
	CustomerID pgtype.Text
	Amount     int64
	CreatedAt  pgtype.Timestamptz
}

// DeliveryArea is a grocery tenant's serviceable region keyed by pincodes.
type DeliveryArea struct {
	ID        pgtype.UUID
	TenantID  pgtype.UUID
	Name      string
	Pincodes  []string
	Active    bool
	CreatedAt pgtype.Timestamptz
}

// DeliveryAssignment routes a settled grocery order to a delivery area.
type DeliveryAssignment struct {
	ID             pgtype.UUID
	OrderID        pgtype.UUID
	DeliveryAreaID pgtype.UUID
	Pincode        string
	CreatedAt      pgtype.Timestamptz
}
