package coupon

import (
	"bytes"
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
	coupon        db.Coupon
	couponErr     error
	redemption    db.CouponRedemption
	redemptionErr error

	inserted     []db.InsertCouponRedemptionParams
	incremented  int
	insertErr    error
	incrementErr error
}

func (s *stubQuerier) GetCouponByID(context.Context, pgtype.UUID) (db.Coupon, error) {
	return s.coupon, s.couponErr
}

func (s *stubQuerier) GetCouponRedemptionByOrder(context.Context, db.GetCouponRedemptionByOrderParams) (db.CouponRedemption, error) {
	return s.redemption, s.redemptionErr
}

func (s *stubQuerier) InsertCouponRedemption(_ context.Context, arg db.InsertCouponRedemptionParams) error {
	s.inserted = append(s.inserted, arg)
	return s.insertErr
}

func (s *stubQuerier) IncrementCouponUsage(context.Context, pgtype.UUID) error {
	s.incremented++
	return s.incrementErr
}

func validUUID(t *testing.T) pgtype.UUID {
	t.Helper()
	id, err := db.UUIDFromString("3e9b6c97-6d6f-4f4c-af3b-4c5d6e7f8091")
	require.NoError(t, err)
	return id
}

func TestSettleRecordsRedemption(t *testing.T) {
	id := validUUID(t)
	q := &stubQuerier{coupon: db.Coupon{ID: id, Code: "WELCOME10"}, redemptionErr: pgx.ErrNoRows}
	svc := &Service{Q: q}

	require.NoError(t, svc.Settle(context.Background(), id, id, "cust-9", 50))
	require.Len(t, q.inserted, 1)
	require.Equal(t, int64(50), q.inserted[0].Amount)
	require.Equal(t, 1, q.incremented)
}

func TestSettleLogsCounterFailure(t *testing.T) {
	id := validUUID(t)
	q := &stubQuerier{
		coupon:        db.Coupon{ID: id, Code: "WELCOME10"},
		redemptionErr: pgx.ErrNoRows,
		incrementErr:  errors.New("usage counter unavailable"),
	}
	var buf bytes.Buffer
	svc := &Service{Q: q, Log: zerolog.New(&buf)}

	require.NoError(t, svc.Settle(context.Background(), id, id, "cust-9", 50))
	require.Len(t, q.inserted, 1)
	require.Contains(t, buf.String(), "increment coupon usage failed")
	require.Contains(t, buf.String(), "usage counter unavailable")
}

func TestSettleIsIdempotent(t *testing.T) {
	id := validUUID(t)
	q := &stubQuerier{coupon: db.Coupon{ID: id}, redemption: db.CouponRedemption{CouponID: id}}
	svc := &Service{Q: q}

	require.NoError(t, svc.Settle(context.Background(), id, id, "", 50))
	require.Empty(t, q.inserted)
	require.Zero(t, q.incremented)
}

func TestSettleIgnoresMissingCoupon(t *testing.T) {
	id := validUUID(t)
	q := &stubQuerier{couponErr: pgx.ErrNoRows}
	svc := &Service{Q: q}

	require.NoError(t, svc.Settle(context.Background(), id, id, "", 50))
	require.Empty(t, q.inserted)
}

func TestSettleIgnoresInvalidIDs(t *testing.T) {
	q := &stubQuerier{}
	svc := &Service{Q: q}

	require.NoError(t, svc.Settle(context.Background(), pgtype.UUID{}, pgtype.UUID{}, "", 50))
	require.Empty(t, q.inserted)
}

func TestSettlePropagatesInsertFailure(t *testing.T) {
	id := validUUID(t)
	q := &stubQuerier{coupon: db.Coupon{ID: id}, redemptionErr: pgx.ErrNoRows, insertErr: errors.New("disk full")}
	svc := &Service{Q: q}

	require.Error(t, svc.Settle(context.Background(), id, id, "", 50))
}

func TestSettleClampsNegativeAmount(t *testing.T) {
	id := validUUID(t)
	q := &stubQuerier{coupon: db.Coupon{ID: id}, redemptionErr: pgx.ErrNoRows}
	svc := &Service{Q: q}

	require.NoError(t, svc.Settle(context.Background(), id, id, "", -10))
	require.Len(t, q.inserted, 1)
	require.Zero(t, q.inserted[0].Amount)
}
