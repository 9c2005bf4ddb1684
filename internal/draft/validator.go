package draft

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/kiranalabs/backend-kirana/internal/common"
)

// FieldError describes one rejected draft field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator checks draft order payloads before materialization. Money is
// verified to be internally consistent so a tampered draft can never settle.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator with struct tag rules registered.
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Parse decodes and validates a raw draft payload. Unknown fields are
// rejected so stale client builds fail loudly instead of silently dropping data.
func (v *Validator) Parse(raw []byte) (Order, error) {
	var o Order
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return Order{}, common.NewAppError("INVALID_DRAFT", "draft order payload is malformed", http.StatusBadRequest, err)
	}
	if err := v.Validate(o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Validate applies tag rules plus the money and line-item consistency checks.
func (v *Validator) Validate(o Order) error {
	if v == nil || v.validate == nil {
		return errors.New("draft validator not configured")
	}
	if err := v.validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]FieldError, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, FieldError{
					Field:   fe.Namespace(),
					Message: fmt.Sprintf("failed %s validation", fe.Tag()),
				})
			}
			return common.NewAppError("INVALID_DRAFT", "draft order failed validation", http.StatusBadRequest, err).
				WithDetails(fields)
		}
		return err
	}
	return v.checkConsistency(o)
}

func (v *Validator) checkConsistency(o Order) error {
	var fields []FieldError
	var linesTotal int64
	for i, it := range o.Items {
		if it.LineTotal != it.UnitPrice*int64(it.Qty) {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("items[%d].lineTotal", i),
				Message: "does not equal qty * unitPrice",
			})
		}
		if _, err := it.ProductUUID(); err != nil {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("items[%d].productId", i),
				Message: "is not a valid id",
			})
		}
		if _, _, err := it.VariantUUID(); err != nil {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("items[%d].variantId", i),
				Message: "is not a valid id",
			})
		}
		linesTotal += it.LineTotal
	}
	if linesTotal != o.Subtotal {
		fields = append(fields, FieldError{Field: "subtotal", Message: "does not equal the sum of line totals"})
	}
	if o.Subtotal-o.DiscountTotal+o.DeliveryFee != o.Total {
		fields = append(fields, FieldError{Field: "total", Message: "does not equal subtotal - discountTotal + deliveryFee"})
	}
	if o.DiscountTotal > o.Subtotal {
		fields = append(fields, FieldError{Field: "discountTotal", Message: "exceeds subtotal"})
	}
	if (o.CouponID == "") != (o.CouponCode == "") {
		fields = append(fields, FieldError{Field: "couponId", Message: "couponId and couponCode must be set together"})
	}
	if len(fields) > 0 {
		return common.NewAppError("INVALID_DRAFT", "draft order failed validation", http.StatusBadRequest, nil).
			WithDetails(fields)
	}
	return nil
}
