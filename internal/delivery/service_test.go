package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kiranalabs/backend-kirana/internal/db"
)

type stubQuerier struct {
	area      db.DeliveryArea
	areaErr   error
	insertErr error

	assignments []db.InsertDeliveryAssignmentParams
}

func (s *stubQuerier) MatchDeliveryArea(context.Context, db.MatchDeliveryAreaParams) (db.DeliveryArea, error) {
	return s.area, s.areaErr
}

func (s *stubQuerier) InsertDeliveryAssignment(_ context.Context, arg db.InsertDeliveryAssignmentParams) error {
	s.assignments = append(s.assignments, arg)
	return s.insertErr
}

func (s *stubQuerier) GetDeliveryAssignmentByOrder(context.Context, pgtype.UUID) (db.DeliveryAssignment, error) {
	return db.DeliveryAssignment{}, pgx.ErrNoRows
}

func areaID(t *testing.T) pgtype.UUID {
	t.Helper()
	id, err := db.UUIDFromString("7bdf80db-ab0d-4f80-af7f-8091a2b3c4d5")
	require.NoError(t, err)
	return id
}

func TestAssignMatchesAreaByPincode(t *testing.T) {
	q := &stubQuerier{area: db.DeliveryArea{ID: areaID(t), Name: "Koramangala", Pincodes: []string{"560034"}}}
	svc := &Service{Q: q, Log: zerolog.Nop()}

	require.NoError(t, svc.Assign(context.Background(), pgtype.UUID{}, areaID(t), "560034"))
	require.Len(t, q.assignments, 1)
	require.Equal(t, "560034", q.assignments[0].Pincode)
	require.Equal(t, areaID(t), q.assignments[0].DeliveryAreaID)
}

func TestAssignNoAreaForPincode(t *testing.T) {
	q := &stubQuerier{areaErr: pgx.ErrNoRows}
	svc := &Service{Q: q, Log: zerolog.Nop()}

	err := svc.Assign(context.Background(), pgtype.UUID{}, areaID(t), "999999")
	require.ErrorIs(t, err, ErrNoAreaForPincode)
	require.Empty(t, q.assignments)
}

func TestAssignEmptyPincode(t *testing.T) {
	svc := &Service{Q: &stubQuerier{}, Log: zerolog.Nop()}
	require.ErrorIs(t, svc.Assign(context.Background(), pgtype.UUID{}, areaID(t), ""), ErrNoAreaForPincode)
}

func TestAssignPropagatesInsertFailure(t *testing.T) {
	q := &stubQuerier{area: db.DeliveryArea{ID: areaID(t)}, insertErr: errors.New("connection reset")}
	svc := &Service{Q: q, Log: zerolog.Nop()}

	require.Error(t, svc.Assign(context.Background(), pgtype.UUID{}, areaID(t), "560034"))
}
