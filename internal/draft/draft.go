package draft

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Item is one purchasable line captured at checkout time.
type Item struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	VariantID string `json:"variantId,omitempty" validate:"omitempty,uuid"`
	Name      string `json:"name" validate:"required"`
	Qty       int32  `json:"qty" validate:"required,gt=0"`
	UnitPrice int64  `json:"unitPrice" validate:"gte=0"`
	LineTotal int64  `json:"lineTotal" validate:"gte=0"`
	// StockQty is the stock level seen at checkout. Informational only; the
	// materializer re-checks stock inside the settlement transaction.
	StockQty int64 `json:"stockQty,omitempty" validate:"gte=0"`
}

// Order is the checkout snapshot stored on a payment intent. It is the sole
// source of truth for what gets materialized once the payment verifies.
type Order struct {
	OrderNumber     string          `json:"orderNumber" validate:"required,max=64"`
	CustomerName    string          `json:"customerName" validate:"required,max=200"`
	CustomerPhone   string          `json:"customerPhone,omitempty" validate:"omitempty,max=20"`
	CustomerEmail   string          `json:"customerEmail,omitempty" validate:"omitempty,email"`
	ShippingAddress json.RawMessage `json:"shippingAddress,omitempty"`
	Pincode         string          `json:"pincode,omitempty" validate:"omitempty,len=6,numeric"`
	Subtotal        int64           `json:"subtotal" validate:"gte=0"`
	DiscountTotal   int64           `json:"discountTotal" validate:"gte=0"`
	DeliveryFee     int64           `json:"deliveryFee" validate:"gte=0"`
	Total           int64           `json:"total" validate:"gt=0"`
	Currency        string          `json:"currency" validate:"required,len=3"`
	DeliveryZone    string          `json:"deliveryZone,omitempty"`
	DeliverySlot    string          `json:"deliverySlot,omitempty"`
	DeliveryOption  string          `json:"deliveryOption,omitempty"`
	CouponID        string          `json:"couponId,omitempty" validate:"omitempty,uuid"`
	CouponCode      string          `json:"couponCode,omitempty" validate:"omitempty,max=64"`
	CartID          string          `json:"cartId,omitempty" validate:"omitempty,uuid"`
	CustomerID      string          `json:"customerId,omitempty"`
	Items           []Item          `json:"items" validate:"required,min=1,dive"`
}

// ProductUUID parses the item's product id.
func (it Item) ProductUUID() (uuid.UUID, error) {
	return uuid.Parse(it.ProductID)
}

// VariantUUID parses the optional variant id; ok is false when absent.
func (it Item) VariantUUID() (uuid.UUID, bool, error) {
	if it.VariantID == "" {
		return uuid.UUID{}, false, nil
	}
	id, err := uuid.Parse(it.VariantID)
	return id, err == nil, err
}
