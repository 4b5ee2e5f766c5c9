package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslib/borrowsvc/internal/api"
	"github.com/campuslib/borrowsvc/internal/core"
)

// fakeLister serves canned borrow history per student.
type fakeLister struct {
	byStudent map[string][]core.BorrowRecord
	err       error
}

func (f *fakeLister) ListByStudent(_ context.Context, studentID string) ([]core.BorrowRecord, error) {
	if f.err != nil {
		return nil, f.err
	}

	records := f.byStudent[studentID]
	if records == nil {
		records = []core.BorrowRecord{}
	}

	return records, nil
}

func newRouter(t *testing.T, lister *fakeLister) http.Handler {
	t.Helper()

	handler, err := api.NewHandler(lister)
	require.NoError(t, err)

	return handler.Router()
}

func date(t *testing.T, value string) time.Time {
	t.Helper()

	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)

	return parsed
}

func Test_GetBorrows_ReturnsHistoryInCreationOrder(t *testing.T) {
	// arrange
	returned := date(t, "2026-02-01")
	lister := &fakeLister{byStudent: map[string][]core.BorrowRecord{
		"S1": {
			{ID: 1, StudentID: "S1", BookID: "B1", BorrowedOn: date(t, "2026-01-10"), ReturnedOn: &returned},
			{ID: 2, StudentID: "S1", BookID: "B2", BorrowedOn: date(t, "2026-01-20")},
		},
	}}
	router := newRouter(t, lister)

	request := httptest.NewRequest(http.MethodGet, "/borrows/S1", nil)
	recorder := httptest.NewRecorder()

	// act
	router.ServeHTTP(recorder, request)

	// assert
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var body []map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body, 2)

	assert.Equal(t, float64(1), body[0]["id"])
	assert.Equal(t, "S1", body[0]["studentid"])
	assert.Equal(t, "B1", body[0]["bookid"])
	assert.Equal(t, "2026-01-10", body[0]["date_borrowed"])
	assert.Equal(t, "2026-02-01", body[0]["date_returned"])

	assert.Equal(t, float64(2), body[1]["id"])
	assert.Equal(t, "2026-01-20", body[1]["date_borrowed"])
	assert.Nil(t, body[1]["date_returned"])
}

func Test_GetBorrows_ReturnsEmptyArray_ForUnknownStudent(t *testing.T) {
	// arrange - no existence check is performed, unknown students are not an error
	router := newRouter(t, &fakeLister{})

	request := httptest.NewRequest(http.MethodGet, "/borrows/nobody", nil)
	recorder := httptest.NewRecorder()

	// act
	router.ServeHTTP(recorder, request)

	// assert
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `[]`, recorder.Body.String())
}

func Test_GetBorrows_Returns500_WhenStoreReadFails(t *testing.T) {
	// arrange
	router := newRouter(t, &fakeLister{err: errors.New("connection refused")})

	request := httptest.NewRequest(http.MethodGet, "/borrows/S1", nil)
	recorder := httptest.NewRecorder()

	// act
	router.ServeHTTP(recorder, request)

	// assert
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func Test_GetBorrows_MethodNotAllowed(t *testing.T) {
	// arrange
	router := newRouter(t, &fakeLister{})

	request := httptest.NewRequest(http.MethodPost, "/borrows/S1", nil)
	recorder := httptest.NewRecorder()

	// act
	router.ServeHTTP(recorder, request)

	// assert
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}

func Test_Healthz(t *testing.T) {
	// arrange
	router := newRouter(t, &fakeLister{})

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()

	// act
	router.ServeHTTP(recorder, request)

	// assert
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "OK", recorder.Body.String())
}
