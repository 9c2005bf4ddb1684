package draft

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiranalabs/backend-kirana/internal/common"
)

const (
	productID = "4fac7da8-7e7a-4f5d-bf4c-5d6e7f8091a2"
	couponID  = "3e9b6c97-6d6f-4f4c-af3b-4c5d6e7f8091"
)

func baseDraft() map[string]any {
	return map[string]any{
		"orderNumber":   "KIR-2001",
		"customerName":  "Ravi Kumar",
		"pincode":       "560034",
		"subtotal":      int64(600),
		"discountTotal": int64(0),
		"deliveryFee":   int64(40),
		"total":         int64(640),
		"currency":      "INR",
		"items": []map[string]any{
			{
				"productId": productID,
				"name":      "Toor Dal 1kg",
				"qty":       int64(3),
				"unitPrice": int64(200),
				"lineTotal": int64(600),
			},
		},
	}
}

func parseDraft(t *testing.T, doc map[string]any) (Order, error) {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return NewValidator().Parse(raw)
}

func requireInvalidDraft(t *testing.T, err error) []FieldError {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_DRAFT", appErr.Code)
	fields, ok := appErr.Details.([]FieldError)
	require.True(t, ok)
	return fields
}

func TestParseValidDraft(t *testing.T) {
	o, err := parseDraft(t, baseDraft())
	require.NoError(t, err)
	require.Equal(t, "KIR-2001", o.OrderNumber)
	require.Len(t, o.Items, 1)
	require.Equal(t, int64(640), o.Total)
}

func TestParseAcceptsStockSnapshot(t *testing.T) {
	doc := baseDraft()
	doc["items"].([]map[string]any)[0]["stockQty"] = int64(10)

	o, err := parseDraft(t, doc)
	require.NoError(t, err)
	require.Equal(t, int64(10), o.Items[0].StockQty)
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := NewValidator().Parse([]byte(`{"orderNumber":`))
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_DRAFT", appErr.Code)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	doc := baseDraft()
	doc["unexpected"] = true
	_, err := parseDraft(t, doc)
	require.Error(t, err)
}

func TestParseRejectsMissingItems(t *testing.T) {
	doc := baseDraft()
	doc["items"] = []map[string]any{}
	_, err := parseDraft(t, doc)
	requireInvalidDraft(t, err)
}

func TestParseRejectsLineTotalMismatch(t *testing.T) {
	doc := baseDraft()
	doc["items"].([]map[string]any)[0]["lineTotal"] = int64(599)
	doc["subtotal"] = int64(599)
	doc["total"] = int64(639)
	_, err := parseDraft(t, doc)
	fields := requireInvalidDraft(t, err)
	require.Equal(t, "items[0].lineTotal", fields[0].Field)
}

func TestParseRejectsSubtotalMismatch(t *testing.T) {
	doc := baseDraft()
	doc["subtotal"] = int64(700)
	doc["total"] = int64(740)
	_, err := parseDraft(t, doc)
	fields := requireInvalidDraft(t, err)
	require.Equal(t, "subtotal", fields[0].Field)
}

func TestParseRejectsTotalMismatch(t *testing.T) {
	doc := baseDraft()
	doc["total"] = int64(999)
	_, err := parseDraft(t, doc)
	fields := requireInvalidDraft(t, err)
	require.Equal(t, "total", fields[0].Field)
}

func TestParseRejectsDiscountExceedingSubtotal(t *testing.T) {
	doc := baseDraft()
	doc["discountTotal"] = int64(700)
	doc["total"] = int64(-60)
	_, err := parseDraft(t, doc)
	require.Error(t, err)
}

func TestParseRejectsUnpairedCoupon(t *testing.T) {
	doc := baseDraft()
	doc["couponId"] = couponID
	_, err := parseDraft(t, doc)
	fields := requireInvalidDraft(t, err)
	require.Equal(t, "couponId", fields[0].Field)

	doc = baseDraft()
	doc["couponCode"] = "WELCOME10"
	_, err = parseDraft(t, doc)
	fields = requireInvalidDraft(t, err)
	require.Equal(t, "couponId", fields[0].Field)
}

func TestParseRejectsBadPincode(t *testing.T) {
	doc := baseDraft()
	doc["pincode"] = "56A038"
	_, err := parseDraft(t, doc)
	requireInvalidDraft(t, err)
}

func TestParseAcceptsVariantItem(t *testing.T) {
	doc := baseDraft()
	doc["items"].([]map[string]any)[0]["variantId"] = "5fbd8eb9-8f8b-4f6e-af5d-6e7f8091a2b3"
	o, err := parseDraft(t, doc)
	require.NoError(t, err)
	id, ok, err := o.Items[0].VariantUUID()
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, id.String())
}
