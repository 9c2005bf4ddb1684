package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kiranalabs/backend-kirana/internal/db"
	"github.com/kiranalabs/backend-kirana/internal/intent"
)

const adminIntentID = "0b6e3f64-3a3c-4f19-9d0e-1f2a3b4c5d6e"

// fakeDB routes QueryRow by SQL substring so handler paths that only read a
// single intent and issue updates can run without postgres.
type fakeDB struct {
	intent    db.PaymentIntent
	intentErr error
	execs     []string
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	if strings.Contains(sql, "FROM payment_intents") {
		return intentRow{pi: f.intent, err: f.intentErr}
	}
	return intentRow{err: errors.New("unexpected query: " + sql)}
}

type intentRow struct {
	pi  db.PaymentIntent
	err error
}

func (r intentRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*pgtype.UUID) = r.pi.ID
	*dest[1].(*pgtype.UUID) = r.pi.TenantID
	*dest[2].(*pgtype.UUID) = r.pi.CartID
	*dest[3].(*string) = r.pi.StoreSlug
	*dest[4].(*[]byte) = r.pi.DraftOrderData
	*dest[5].(*int64) = r.pi.Amount
	*dest[6].(*string) = r.pi.Currency
	*dest[7].(*db.IntentStatus) = r.pi.Status
	*dest[8].(*pgtype.Text) = r.pi.GatewayOrderID
	*dest[9].(*pgtype.Text) = r.pi.GatewayPaymentID
	*dest[10].(*bool) = r.pi.CallbackHandled
	*dest[11].(*pgtype.Text) = r.pi.LastError
	*dest[12].(*pgtype.Timestamptz) = r.pi.CreatedAt
	*dest[13].(*pgtype.Timestamptz) = r.pi.UpdatedAt
	return nil
}

func newAdminFixture(t *testing.T, fdb *fakeDB) http.Handler {
	t.Helper()
	queries := db.New(fdb)
	h := &Handlers{
		Q:            queries,
		Intents:      &intent.Machine{Q: queries, Log: zerolog.Nop()},
		DefaultLimit: 20,
		MaxLimit:     100,
		Log:          zerolog.Nop(),
	}
	r := chi.NewRouter()
	r.Get("/admin/tenants/{tenantID}/intents", h.ListIntents)
	r.Get("/admin/intents/{intentID}", h.GetIntent)
	r.Post("/admin/intents/{intentID}/release", h.ReleaseClaim)
	return r
}

func TestReleaseClaimUnblocksProcessingIntent(t *testing.T) {
	id, err := db.UUIDFromString(adminIntentID)
	require.NoError(t, err)
	fdb := &fakeDB{intent: db.PaymentIntent{ID: id, Status: db.IntentStatusProcessing, CallbackHandled: true}}
	router := newAdminFixture(t, fdb)

	req := httptest.NewRequest(http.MethodPost, "/admin/intents/"+adminIntentID+"/release", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var released bool
	for _, sql := range fdb.execs {
		if strings.Contains(sql, "callback_handled = FALSE") || strings.Contains(sql, "callback_handled = false") {
			released = true
		}
	}
	require.True(t, released, "expected claim release update, got %v", fdb.execs)
}

func TestReleaseClaimRejectsNonProcessingIntent(t *testing.T) {
	id, err := db.UUIDFromString(adminIntentID)
	require.NoError(t, err)
	fdb := &fakeDB{intent: db.PaymentIntent{ID: id, Status: db.IntentStatusPaid}}
	router := newAdminFixture(t, fdb)

	req := httptest.NewRequest(http.MethodPost, "/admin/intents/"+adminIntentID+"/release", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Empty(t, fdb.execs)
}

func TestReleaseClaimIntentNotFound(t *testing.T) {
	fdb := &fakeDB{intentErr: pgx.ErrNoRows}
	router := newAdminFixture(t, fdb)

	req := httptest.NewRequest(http.MethodPost, "/admin/intents/"+adminIntentID+"/release", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListIntentsRejectsInvalidTenantID(t *testing.T) {
	router := newAdminFixture(t, &fakeDB{})

	req := httptest.NewRequest(http.MethodGet, "/admin/tenants/not-a-uuid/intents", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetIntentRejectsInvalidID(t *testing.T) {
	router := newAdminFixture(t, &fakeDB{})

	req := httptest.NewRequest(http.MethodGet, "/admin/intents/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
