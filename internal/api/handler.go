// Package api serves the read-only borrow history endpoint.
//
// The endpoint reads the record store directly and performs no existence
// check: a student without records gets an empty list, not an error.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"github.com/campuslib/borrowsvc/internal/core"
)

const (
	pathVarStudentID = "studentid"
	dateFormat       = "2006-01-02"

	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"

	logMsgListFailed   = "failed to read borrow history"
	logMsgEncodeFailed = "failed to encode borrow history response"
	logAttrError       = "error"
	logAttrStudentID   = "studentid"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// RecordLister defines the interface needed by the Handler to read borrow history.
type RecordLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]core.BorrowRecord, error)
}

// Logger interface for request error logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Handler serves the borrow history query API.
type Handler struct {
	records RecordLister
	logger  Logger
}

// Option defines a functional option for configuring Handler.
type Option func(*Handler) error

// WithLogger sets the logger for the Handler.
func WithLogger(logger Logger) Option {
	return func(h *Handler) error {
		h.logger = logger
		return nil
	}
}

// NewHandler creates a Handler with optional configuration.
func NewHandler(records RecordLister, options ...Option) (Handler, error) {
	h := Handler{records: records}

	for _, option := range options {
		if err := option(&h); err != nil {
			return Handler{}, err
		}
	}

	return h, nil
}

// Router builds the HTTP route table for the history API.
func (h Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	router.HandleFunc("/borrows/{studentid}", h.getBorrowsByStudent).Methods(http.MethodGet)

	return router
}

// borrowRecordResponse is the serialized form of a borrow record.
// date_returned is null while the book is still held.
type borrowRecordResponse struct {
	ID           int64   `json:"id"`
	StudentID    string  `json:"studentid"`
	BookID       string  `json:"bookid"`
	DateBorrowed string  `json:"date_borrowed"`
	DateReturned *string `json:"date_returned"`
}

func (h Handler) getBorrowsByStudent(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)[pathVarStudentID]

	records, err := h.records.ListByStudent(r.Context(), studentID)
	if err != nil {
		if h.logger != nil {
			h.logger.Error(logMsgListFailed, logAttrStudentID, studentID, logAttrError, err.Error())
		}

		http.Error(w, "failed to read borrow history", http.StatusInternalServerError)

		return
	}

	response := make([]borrowRecordResponse, 0, len(records))
	for _, record := range records {
		response = append(response, toResponse(record))
	}

	w.Header().Set(headerContentType, contentTypeJSON)

	if err := jsonAPI.NewEncoder(w).Encode(response); err != nil && h.logger != nil {
		h.logger.Error(logMsgEncodeFailed, logAttrStudentID, studentID, logAttrError, err.Error())
	}
}

func (h Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func toResponse(record core.BorrowRecord) borrowRecordResponse {
	response := borrowRecordResponse{
		ID:           record.ID,
		StudentID:    record.StudentID,
		BookID:       record.BookID,
		DateBorrowed: record.BorrowedOn.Format(dateFormat),
	}

	if record.ReturnedOn != nil {
		returned := record.ReturnedOn.Format(dateFormat)
		response.DateReturned = &returned
	}

	return response
}
