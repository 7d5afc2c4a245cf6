package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbook/internal/app/booking"
	"rentbook/internal/app/dto"
	"rentbook/internal/app/policies"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/shared/money"
	"rentbook/internal/infra/obs"
	"rentbook/internal/infra/storage/memory"
)

func newTestRouter(t *testing.T, checks map[string]obs.Check) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	require.NoError(t, store.PutItem(context.Background(), catalog.Item{
		ID:         "item-1",
		OwnerID:    "owner-1",
		DailyPrice: money.Must(100, "USD"),
		Available:  true,
	}))
	svc := booking.NewService(booking.Deps{
		UoWFactory:  memory.Factory{Store: store},
		Outbox:      store.Outbox(),
		Payments:    policies.ReceiptPayments{Receipts: store},
		Idempotency: memory.NewIdempotencyStore(0),
		Clock:       func() time.Time { return time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC) },
	})
	return NewRouter(obs.Middleware{}, obs.HealthHandlers{Checks: checks}, Handlers{
		Rentals:      RentalHandler{Service: svc},
		Availability: AvailabilityHandler{Service: svc},
	})
}

func do(r http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestCreateRentalRequiresIdentity(t *testing.T) {
	r := newTestRouter(t, nil)
	rec := do(r, http.MethodPost, "/api/v1/rentals", "", gin.H{"item_id": "item-1", "start_date": "2024-01-10", "end_date": "2024-01-13"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", errorCode(t, rec))
}

func TestCreateRentalEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)
	body := gin.H{"item_id": "item-1", "start_date": "2024-01-10", "end_date": "2024-01-13"}

	rec := do(r, http.MethodPost, "/api/v1/rentals", "renter-1", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created dto.Rental
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, int64(400), created.TotalPrice.Amount)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(r, http.MethodPost, "/api/v1/rentals", "renter-2", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))

	rec = do(r, http.MethodGet, "/api/v1/rentals/"+created.ID, "owner-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/rentals/"+created.ID, "stranger", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/rentals/missing", "renter-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRentalRejectsBadInput(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(r, http.MethodPost, "/api/v1/rentals", "renter-1", gin.H{"item_id": "item-1", "start_date": "10/01/2024", "end_date": "2024-01-13"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", errorCode(t, rec))

	rec = do(r, http.MethodPost, "/api/v1/rentals", "owner-1", gin.H{"item_id": "item-1", "start_date": "2024-01-10", "end_date": "2024-01-13"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation", errorCode(t, rec))
}

func TestTransitionOutOfOrderIsConflict(t *testing.T) {
	r := newTestRouter(t, nil)
	rec := do(r, http.MethodPost, "/api/v1/rentals", "renter-1", gin.H{"item_id": "item-1", "start_date": "2024-01-10", "end_date": "2024-01-11"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created dto.Rental
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = do(r, http.MethodPost, "/api/v1/rentals/"+created.ID+"/pickup", "owner-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", errorCode(t, rec))

	rec = do(r, http.MethodPost, "/api/v1/rentals/"+created.ID+"/accept", "owner-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodPost, "/api/v1/rentals/"+created.ID+"/cancel", "renter-1", gin.H{"reason": "plans changed"})
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled dto.Rental
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, "plans changed", cancelled.CancellationReason)

	rec = do(r, http.MethodGet, "/api/v1/me/rentals", "renter-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine dto.RentalCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.Len(t, mine.Items, 1)
}

func TestAvailabilityEndpoints(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(r, http.MethodPost, "/api/v1/items/item-1/availability/block", "owner-1", gin.H{"start_date": "2024-01-20", "end_date": "2024-01-21"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(r, http.MethodGet, "/api/v1/items/item-1/availability/check?start=2024-01-19&end=2024-01-20", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check dto.AvailabilityCheck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.False(t, check.IsAvailable)
	assert.Equal(t, []string{"2024-01-20"}, check.UnavailableDates)

	rec = do(r, http.MethodGet, "/api/v1/items/item-1/availability?months=13", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/items/item-1/availability?from=2024-01-19&months=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cal dto.Calendar
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cal))
	require.NotEmpty(t, cal.Days)
	assert.Equal(t, "2024-01-19", cal.Days[0].Date)
	assert.True(t, cal.Days[0].IsAvailable)
	assert.False(t, cal.Days[1].IsAvailable)

	rec = do(r, http.MethodGet, "/api/v1/items/item-1/availability/check?start=bad&end=2024-01-20", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/api/v1/items/item-1/availability/unblock", "renter-1", gin.H{"start_date": "2024-01-20", "end_date": "2024-01-21"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReadiness(t *testing.T) {
	r := newTestRouter(t, map[string]obs.Check{
		"storage": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/readyz", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/livez", "", nil).Code)

	r = newTestRouter(t, map[string]obs.Check{
		"broker": func(context.Context) error { return errors.New("unreachable") },
	})
	rec := do(r, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unreachable")
}

func TestStatusForUnclassifiedIsInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
