package delivery

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/kiranalabs/backend-kirana/internal/db"
)

// ErrNoAreaForPincode reports that no active delivery area covers the pincode.
var ErrNoAreaForPincode = errors.New("no delivery area serves this pincode")

// Querier captures the database methods required for delivery assignment.
type Querier interface {
	MatchDeliveryArea(ctx context.Context, arg db.MatchDeliveryAreaParams) (db.DeliveryArea, error)
	InsertDeliveryAssignment(ctx context.Context, arg db.InsertDeliveryAssignmentParams) error
	GetDeliveryAssignmentByOrder(ctx context.Context, orderID pgtype.UUID) (db.DeliveryAssignment, error)
}

// Service routes settled grocery orders to the delivery area covering the
// shipping pincode.
type Service struct {
	Q   Querier
	Log zerolog.Logger
}

// Assign picks the area serving the pincode and records the assignment.
// Repeats for the same order are absorbed by the unique order constraint.
func (s *Service) Assign(ctx context.Context, tenantID, orderID pgtype.UUID, pincode string) error {
	if s == nil || s.Q == nil {
		return errors.New("delivery service not configured")
	}
	if pincode == "" {
		return ErrNoAreaForPincode
	}
	area, err := s.Q.MatchDeliveryArea(ctx, db.MatchDeliveryAreaParams{TenantID: tenantID, Pincode: pincode})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoAreaForPincode
		}
		return err
	}
	if err := s.Q.InsertDeliveryAssignment(ctx, db.InsertDeliveryAssignmentParams{
		OrderID:        orderID,
		DeliveryAreaID: area.ID,
		Pincode:        pincode,
	}); err != nil {
		return err
	}
	s.Log.Info().
		Str("order_id", db.UUIDString(orderID)).
		Str("area", area.Name).
		Str("pincode", pincode).
		Msg("delivery area assigned")
	return nil
}
