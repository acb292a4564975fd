package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attendance-service/internal/search"
)

type fakeReviewSearcher struct {
	docs  []search.ReviewDocument
	err   error
	query search.ReviewQuery
}

func (f *fakeReviewSearcher) SearchReviews(_ context.Context, q search.ReviewQuery) ([]search.ReviewDocument, error) {
	f.query = q
	return f.docs, f.err
}

func newReviewRouter(reviews ReviewSearcher) chi.Router {
	h := NewAttendanceHandler(nil, nil, nil, reviews, zap.NewNop())
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router chi.Router, target string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestSearchReviewsReturnsDocuments(t *testing.T) {
	searcher := &fakeReviewSearcher{
		docs: []search.ReviewDocument{
			{AttendanceID: "att-1", EmployeeID: "emp-1", RiskLevel: "high"},
			{AttendanceID: "att-2", EmployeeID: "emp-2", RiskLevel: "high"},
		},
	}
	router := newReviewRouter(searcher)

	rec, resp := doRequest(t, router, "/attendance/reviews?risk_level=high&department=engineering&limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	assert.Equal(t, "high", searcher.query.RiskLevel)
	assert.Equal(t, "engineering", searcher.query.Department)
	assert.Equal(t, 10, searcher.query.Limit)

	docs, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, docs, 2)
}

func TestSearchReviewsRejectsBadLimit(t *testing.T) {
	router := newReviewRouter(&fakeReviewSearcher{})

	for _, limit := range []string{"abc", "0", "-3"} {
		rec, resp := doRequest(t, router, "/attendance/reviews?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request", resp.Error)
	}
}

func TestSearchReviewsWithoutBackend(t *testing.T) {
	router := newReviewRouter(nil)

	rec, resp := doRequest(t, router, "/attendance/reviews")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "search_unavailable", resp.Error)
}

func TestSearchReviewsBackendError(t *testing.T) {
	router := newReviewRouter(&fakeReviewSearcher{err: context.DeadlineExceeded})

	rec, resp := doRequest(t, router, "/attendance/reviews")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "system_error", resp.Error)
}

func TestCheckInRejectsSuspiciousEmployeeID(t *testing.T) {
	h := NewAttendanceHandler(nil, nil, nil, nil, zap.NewNop())
	router := chi.NewRouter()
	h.RegisterRoutes(router)

	body := strings.NewReader(`{"employee_id": "emp-1<script>alert(1)</script>"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/attendance/check-in", body))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", resp.Error)
	assert.Contains(t, resp.Message, "invalid characters")
}
