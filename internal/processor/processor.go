// Package processor turns queued borrow requests into durable borrow records.
//
// For each message it validates the student and the book against the external
// registries, applies the borrow limit against a fresh active-borrow count and,
// when admitted, creates the record. The returned Outcome tells the queue
// consumer whether the message may be acknowledged: only a store failure
// during commit keeps the message for redelivery, every other outcome is
// terminal and drops it.
package processor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/campuslib/borrowsvc/internal/core"
	"github.com/campuslib/borrowsvc/internal/gateway"
)

const (
	logMsgMalformedPayload = "dropping malformed borrow request"
	logMsgStudentRejected  = "borrow request rejected: student not validated"
	logMsgBookRejected     = "borrow request rejected: book not validated"
	logMsgLimitReached     = "borrow request rejected: borrow limit reached"
	logMsgCountFailed      = "failed to read active borrow count, keeping message for redelivery"
	logMsgCommitFailed     = "failed to commit borrow record, keeping message for redelivery"
	logMsgCommitted        = "borrow request committed"

	logAttrMessageID   = "message_id"
	logAttrError       = "error"
	logAttrStudentID   = "studentid"
	logAttrBookID      = "bookid"
	logAttrRecordID    = "record_id"
	logAttrActiveCount = "active_count"
	logAttrLimit       = "limit"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidBorrowLimit is returned when WithBorrowLimit is given a non-positive limit.
var ErrInvalidBorrowLimit = errors.New("borrow limit must be positive")

// Outcome is the terminal state of processing one queued borrow request.
type Outcome string

const (
	// OutcomeCommitted means a new borrow record was persisted.
	OutcomeCommitted Outcome = "committed"

	// OutcomeRejectedMalformed means the payload could not be parsed; retrying can never succeed.
	OutcomeRejectedMalformed Outcome = "rejected_malformed"

	// OutcomeRejectedInvalidStudent means the student was not validated, either
	// because the registry reported it unknown or because the lookup failed (fail closed).
	OutcomeRejectedInvalidStudent Outcome = "rejected_invalid_student"

	// OutcomeRejectedInvalidBook means the book was not validated, same fail-closed rule.
	OutcomeRejectedInvalidBook Outcome = "rejected_invalid_book"

	// OutcomeRejectedLimitExceeded means the student already holds the maximum number of active borrows.
	OutcomeRejectedLimitExceeded Outcome = "rejected_limit_exceeded"

	// OutcomeFailedStore means the record store failed; the message must be redelivered.
	OutcomeFailedStore Outcome = "failed_store"
)

// ShouldAck reports whether the message may be removed from the queue.
// Only store failures are worth a redelivery; a rejection will not change
// on a bare retry.
func (o Outcome) ShouldAck() bool {
	return o != OutcomeFailedStore
}

// borrowRequestMessage is the wire format of a queued borrow request.
// date_returned is accepted for compatibility with producers but ignored:
// the admission path only ever creates records with an absent return date.
type borrowRequestMessage struct {
	StudentID    string `json:"studentid"`
	BookID       string `json:"bookid"`
	DateReturned string `json:"date_returned,omitempty"`
}

// ExistenceChecker defines the interface needed by the Processor for registry lookups.
type ExistenceChecker interface {
	Exists(ctx context.Context, kind gateway.Kind, id string) (bool, error)
}

// RecordStore defines the interface needed by the Processor for borrow persistence.
type RecordStore interface {
	CountActive(ctx context.Context, studentID string) (int, error)
	Create(ctx context.Context, studentID string, bookID string, borrowedOn time.Time) (core.BorrowRecord, error)
}

// Logger interface for processing outcome logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Processor orchestrates validation, limit policy and persistence for one
// borrow request at a time.
type Processor struct {
	lookup  ExistenceChecker
	records RecordStore
	limit   int
	logger  Logger
	now     func() time.Time
}

// Option defines a functional option for configuring Processor.
type Option func(*Processor) error

// WithBorrowLimit overrides the default borrow limit.
func WithBorrowLimit(limit int) Option {
	return func(p *Processor) error {
		if limit <= 0 {
			return ErrInvalidBorrowLimit
		}

		p.limit = limit

		return nil
	}
}

// WithLogger sets the logger for the Processor.
func WithLogger(logger Logger) Option {
	return func(p *Processor) error {
		p.logger = logger
		return nil
	}
}

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}

		p.now = now

		return nil
	}
}

// New creates a Processor with the default borrow limit and optional configuration.
func New(lookup ExistenceChecker, records RecordStore, options ...Option) (Processor, error) {
	p := Processor{
		lookup:  lookup,
		records: records,
		limit:   core.DefaultBorrowLimit,
		now:     time.Now,
	}

	for _, option := range options {
		if err := option(&p); err != nil {
			return Processor{}, err
		}
	}

	return p, nil
}

// Process runs one queued borrow request to a terminal outcome.
// It never returns an error: every failure is handled locally and expressed
// through the Outcome and the logs, since the queue transport has no reply channel.
func (p Processor) Process(ctx context.Context, payload []byte) Outcome {
	messageID := uuid.New().String()

	var message borrowRequestMessage
	if err := jsonAPI.Unmarshal(payload, &message); err != nil {
		p.warn(logMsgMalformedPayload, logAttrMessageID, messageID, logAttrError, err.Error())
		return OutcomeRejectedMalformed
	}

	if message.StudentID == "" || message.BookID == "" {
		p.warn(logMsgMalformedPayload, logAttrMessageID, messageID, logAttrError, "studentid and bookid are required")
		return OutcomeRejectedMalformed
	}

	if outcome, ok := p.validate(ctx, messageID, message); !ok {
		return outcome
	}

	activeCount, err := p.records.CountActive(ctx, message.StudentID)
	if err != nil {
		p.error(logMsgCountFailed,
			logAttrMessageID, messageID,
			logAttrStudentID, message.StudentID,
			logAttrError, err.Error(),
		)
		return OutcomeFailedStore
	}

	decision := core.Decide(activeCount, p.limit)
	if !decision.Admitted() {
		p.info(logMsgLimitReached,
			logAttrMessageID, messageID,
			logAttrStudentID, message.StudentID,
			logAttrActiveCount, activeCount,
			logAttrLimit, p.limit,
		)
		return OutcomeRejectedLimitExceeded
	}

	record, err := p.records.Create(ctx, message.StudentID, message.BookID, p.now())
	if err != nil {
		p.error(logMsgCommitFailed,
			logAttrMessageID, messageID,
			logAttrStudentID, message.StudentID,
			logAttrBookID, message.BookID,
			logAttrError, err.Error(),
		)
		return OutcomeFailedStore
	}

	p.info(logMsgCommitted,
		logAttrMessageID, messageID,
		logAttrRecordID, record.ID,
		logAttrStudentID, record.StudentID,
		logAttrBookID, record.BookID,
	)

	return OutcomeCommitted
}

// validate checks both identifiers against the external registries.
// A lookup error counts as "not validated": admission fails closed, and the
// log line carries the underlying error so an outage can be told apart from
// a genuinely unknown identifier.
func (p Processor) validate(ctx context.Context, messageID string, message borrowRequestMessage) (Outcome, bool) {
	exists, err := p.lookup.Exists(ctx, gateway.KindStudent, message.StudentID)
	if err != nil || !exists {
		p.warn(logMsgStudentRejected,
			logAttrMessageID, messageID,
			logAttrStudentID, message.StudentID,
			logAttrError, errText(err),
		)
		return OutcomeRejectedInvalidStudent, false
	}

	exists, err = p.lookup.Exists(ctx, gateway.KindBook, message.BookID)
	if err != nil || !exists {
		p.warn(logMsgBookRejected,
			logAttrMessageID, messageID,
			logAttrBookID, message.BookID,
			logAttrError, errText(err),
		)
		return OutcomeRejectedInvalidBook, false
	}

	return "", true
}

func errText(err error) string {
	if err == nil {
		return "not found"
	}

	return err.Error()
}

func (p Processor) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p Processor) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p Processor) error(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}
