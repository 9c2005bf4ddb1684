package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const matchDeliveryArea = `
SELECT id, tenant_id, name, pincodes, active, created_at
FROM delivery_areas
WHERE tenant_id = $1 AND active = TRUE AND $2 = ANY(pincodes)
ORDER BY created_at
LIMIT 1
`

// MatchDeliveryAreaParams selects the delivery area serving a pincode.
type MatchDeliveryAreaParams struct {
	TenantID pgtype.UUID
	Pincode  string
}

// MatchDeliveryArea returns the oldest active area covering the pincode.
func (q *Queries) MatchDeliveryArea(ctx context.Context, arg MatchDeliveryAreaParams) (DeliveryArea, error) {
	var a DeliveryArea
	err := q.db.QueryRow(ctx, matchDeliveryArea, arg.TenantID, arg.Pincode).
		Scan(&a.ID, &a.TenantID, &a.Name, &a.Pincodes, &a.Active, &a.CreatedAt)
	return a, err
}

const insertDeliveryAssignment = `
INSERT INTO delivery_assignments (order_id, delivery_area_id, pincode)
VALUES ($1, $2, $3)
ON CONFLICT (order_id) DO NOTHING
`

// InsertDeliveryAssignmentParams links an order to its delivery area.
type InsertDeliveryAssignmentParams struct {
	OrderID        pgtype.UUID
	DeliveryAreaID pgtype.UUID
	Pincode        string
}

// InsertDeliveryAssignment records the assignment; repeats are no-ops.
func (q *Queries) InsertDeliveryAssignment(ctx context.Context, arg InsertDeliveryAssignmentParams) error {
	_, err := q.db.Exec(ctx, insertDeliveryAssignment, arg.OrderID, arg.DeliveryAreaID, arg.Pincode)
	return err
}

const getDeliveryAssignmentByOrder = `
SELECT id, order_id, delivery_area_id, pincode, created_at
FROM delivery_assignments
WHERE order_id = $1
`

// GetDeliveryAssignmentByOrder looks up the assignment for an order.
func (q *Queries) GetDeliveryAssignmentByOrder(ctx context.Context, orderID pgtype.UUID) (DeliveryAssignment, error) {
	var da DeliveryAssignment
	err := q.db.QueryRow(ctx, getDeliveryAssignmentByOrder, orderID).
		Scan(&da.ID, &da.OrderID, &da.DeliveryAreaID, &da.Pincode, &da.CreatedAt)
	return da, err
}
