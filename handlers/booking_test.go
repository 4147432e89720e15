package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rapidcare/models"
	"rapidcare/services/approval"
	"rapidcare/services/ledger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAudit struct {
	records []models.TransitionRecord
}

func (f *fakeAudit) RecordTransition(ctx context.Context, rec models.TransitionRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeAudit) ListByBooking(ctx context.Context, bookingID string) ([]models.TransitionRecord, error) {
	var out []models.TransitionRecord
	for _, r := range f.records {
		if r.BookingID == bookingID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAudit) ListByHospital(ctx context.Context, hospitalID string, limit int64) ([]models.TransitionRecord, error) {
	return f.records, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *approval.Machine, *ledger.Ledger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l := ledger.NewLedger(nil)
	machine := approval.NewMachine(l, &fakeAudit{}, nil, nil, nil)
	bh := NewBookingHandler(machine, &fakeAudit{})
	lh := NewLedgerHandler(l)

	r := gin.New()
	r.POST("/api/bookings", bh.SubmitBookingHandler)
	r.POST("/api/bookings/:bookingId/approve", bh.ApproveBookingHandler)
	r.POST("/api/bookings/:bookingId/decline", bh.DeclineBookingHandler)
	r.PUT("/api/hospitals/:id/resources/:resourceType", lh.SetTotalsHandler)
	return r, machine, l
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitBookingHandler(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/bookings",
		`{"hospitalId":"h1","patientId":"p1","resourceType":"beds","resourcesRequested":2}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)

	w = do(r, http.MethodPost, "/api/bookings", `{"patientId":"p1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApproveBookingHandlerErrorMapping(t *testing.T) {
	r, machine, l := newTestRouter(t)
	require.NoError(t, l.SetTotals("h1", models.ResourceBeds, 1, 0))

	b, err := machine.Submit(models.Booking{
		HospitalID: "h1", PatientID: "p1",
		ResourceType: models.ResourceBeds, ResourcesRequested: 1,
	})
	require.NoError(t, err)

	// Unknown booking.
	w := do(r, http.MethodPost, "/api/bookings/missing/approve", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// No free units.
	w = do(r, http.MethodPost, "/api/bookings/"+b.ID+"/approve", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Decline it, then approving again is an invalid transition.
	w = do(r, http.MethodPost, "/api/bookings/"+b.ID+"/decline", `{"reason":"no capacity"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodPost, "/api/bookings/"+b.ID+"/approve", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeclineBookingHandlerRequiresReason(t *testing.T) {
	r, machine, l := newTestRouter(t)
	require.NoError(t, l.SetTotals("h1", models.ResourceBeds, 1, 1))

	b, err := machine.Submit(models.Booking{
		HospitalID: "h1", PatientID: "p1",
		ResourceType: models.ResourceBeds, ResourcesRequested: 1,
	})
	require.NoError(t, err)

	w := do(r, http.MethodPost, "/api/bookings/"+b.ID+"/decline", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetTotalsHandlerRejectsInvalidState(t *testing.T) {
	r, _, l := newTestRouter(t)

	w := do(r, http.MethodPut, "/api/hospitals/h1/resources/beds", `{"total":5,"available":9}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPut, "/api/hospitals/h1/resources/beds", `{"total":5,"available":3}`)
	assert.Equal(t, http.StatusOK, w.Code)
	c, ok := l.Get("h1", models.ResourceBeds)
	require.True(t, ok)
	assert.Equal(t, 2, c.Occupied)
}
