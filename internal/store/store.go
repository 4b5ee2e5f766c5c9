// Package store persists borrow records in a Postgres table.
//
// The store is append-oriented: the borrow-request path only ever inserts
// records with an absent return date. Counting and listing are plain reads.
// No transaction spans a count-then-create pair; the processor sequences
// those calls and runs as a single worker.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/campuslib/borrowsvc/internal/core"
	"github.com/campuslib/borrowsvc/internal/store/adapters"
)

const (
	defaultBorrowsTableName = "borrows"

	colID           = "id"
	colStudentID    = "studentid"
	colBookID       = "bookid"
	colDateBorrowed = "date_borrowed"
	colDateReturned = "date_returned"

	dialectPostgres = "postgres"
	dateFormat      = "2006-01-02"

	logMsgBuildQueryFailed = "failed to build query"
	logMsgQueryFailed      = "database query execution failed"
	logMsgScanRowFailed    = "failed to scan database row"
	logMsgRecordCreated    = "borrow record created"
	logAttrError           = "error"
	logAttrStudentID       = "studentid"
	logAttrRecordID        = "record_id"
)

var (
	// ErrNilDatabaseConnection is returned when a store is constructed without a database connection.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyBorrowsTableName is returned when WithTableName is given an empty name.
	ErrEmptyBorrowsTableName = errors.New("borrows table name must not be empty")
)

// Logger interface for query logging and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// BorrowStore provides access to the durable borrows table.
// It leverages a database adapter and supports customizable logging and table configuration.
type BorrowStore struct {
	db        adapters.DBAdapter
	tableName string
	logger    Logger
}

// Option defines a functional option for configuring BorrowStore.
type Option func(*BorrowStore) error

// WithTableName sets the table name for the BorrowStore.
func WithTableName(tableName string) Option {
	return func(s *BorrowStore) error {
		if tableName == "" {
			return ErrEmptyBorrowsTableName
		}

		s.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the BorrowStore.
func WithLogger(logger Logger) Option {
	return func(s *BorrowStore) error {
		s.logger = logger
		return nil
	}
}

// NewBorrowStoreFromPGXPool creates a new BorrowStore using a pgx Pool with optional configuration.
func NewBorrowStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (BorrowStore, error) {
	if db == nil {
		return BorrowStore{}, ErrNilDatabaseConnection
	}

	return newBorrowStore(adapters.NewPGXAdapter(db), options...)
}

// NewBorrowStoreFromSQLX creates a new BorrowStore using a sqlx.DB with optional configuration.
func NewBorrowStoreFromSQLX(db *sqlx.DB, options ...Option) (BorrowStore, error) {
	if db == nil {
		return BorrowStore{}, ErrNilDatabaseConnection
	}

	return newBorrowStore(adapters.NewSQLXAdapter(db), options...)
}

func newBorrowStore(db adapters.DBAdapter, options ...Option) (BorrowStore, error) {
	s := BorrowStore{
		db:        db,
		tableName: defaultBorrowsTableName,
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return BorrowStore{}, err
		}
	}

	return s, nil
}

// EnsureSchema creates the borrows table if it does not exist yet.
func (s BorrowStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			%s BIGSERIAL PRIMARY KEY,
			%s TEXT NOT NULL,
			%s TEXT NOT NULL,
			%s DATE NOT NULL,
			%s DATE NULL
		)`,
		s.tableName, colID, colStudentID, colBookID, colDateBorrowed, colDateReturned,
	)

	if err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure borrows schema: %w", err)
	}

	return nil
}

// CountActive returns the number of records for the student with no return date set.
// The count is read fresh from the table on every call, it is never cached.
func (s BorrowStore) CountActive(ctx context.Context, studentID string) (int, error) {
	sqlQuery, buildErr := s.buildCountActiveQuery(studentID)
	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, logAttrError, buildErr.Error())
		return 0, buildErr
	}

	var count int
	if err := s.db.QueryRow(ctx, sqlQuery).Scan(&count); err != nil {
		s.logError(logMsgQueryFailed, logAttrError, err.Error(), logAttrStudentID, studentID)
		return 0, fmt.Errorf("failed to count active borrows for student %q: %w", studentID, err)
	}

	return count, nil
}

// ListByStudent returns all records for the student ordered by creation,
// so that repeated reads produce reproducible responses.
func (s BorrowStore) ListByStudent(ctx context.Context, studentID string) ([]core.BorrowRecord, error) {
	sqlQuery, buildErr := s.buildListByStudentQuery(studentID)
	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, logAttrError, buildErr.Error())
		return nil, buildErr
	}

	rows, err := s.db.Query(ctx, sqlQuery)
	if err != nil {
		s.logError(logMsgQueryFailed, logAttrError, err.Error(), logAttrStudentID, studentID)
		return nil, fmt.Errorf("failed to list borrows for student %q: %w", studentID, err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]core.BorrowRecord, 0)

	for rows.Next() {
		var (
			record     core.BorrowRecord
			returnedOn sql.NullTime
		)

		if err := rows.Scan(&record.ID, &record.StudentID, &record.BookID, &record.BorrowedOn, &returnedOn); err != nil {
			s.logError(logMsgScanRowFailed, logAttrError, err.Error())
			return nil, fmt.Errorf("failed to scan borrow record: %w", err)
		}

		if returnedOn.Valid {
			returned := returnedOn.Time
			record.ReturnedOn = &returned
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate borrow records: %w", err)
	}

	return records, nil
}

// Create inserts a new record with an absent return date and returns it with
// the identifier assigned by the database.
func (s BorrowStore) Create(
	ctx context.Context,
	studentID string,
	bookID string,
	borrowedOn time.Time,
) (core.BorrowRecord, error) {

	borrowedDate := core.DateOf(borrowedOn)

	sqlQuery, buildErr := s.buildInsertQuery(studentID, bookID, borrowedDate)
	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, logAttrError, buildErr.Error())
		return core.BorrowRecord{}, buildErr
	}

	record := core.BorrowRecord{
		StudentID:  studentID,
		BookID:     bookID,
		BorrowedOn: borrowedDate,
	}

	if err := s.db.QueryRow(ctx, sqlQuery).Scan(&record.ID); err != nil {
		s.logError(logMsgQueryFailed, logAttrError, err.Error(), logAttrStudentID, studentID)
		return core.BorrowRecord{}, fmt.Errorf("failed to create borrow record for student %q: %w", studentID, err)
	}

	if s.logger != nil {
		s.logger.Debug(logMsgRecordCreated, logAttrRecordID, record.ID, logAttrStudentID, studentID)
	}

	return record, nil
}

func (s BorrowStore) buildCountActiveQuery(studentID string) (string, error) {
	query, _, err := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.C(colStudentID).Eq(studentID),
			goqu.C(colDateReturned).IsNull(),
		).
		ToSQL()

	return query, err
}

func (s BorrowStore) buildListByStudentQuery(studentID string) (string, error) {
	query, _, err := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(colID, colStudentID, colBookID, colDateBorrowed, colDateReturned).
		Where(goqu.C(colStudentID).Eq(studentID)).
		Order(goqu.C(colID).Asc()).
		ToSQL()

	return query, err
}

func (s BorrowStore) buildInsertQuery(studentID string, bookID string, borrowedOn time.Time) (string, error) {
	query, _, err := goqu.Dialect(dialectPostgres).
		Insert(s.tableName).
		Cols(colStudentID, colBookID, colDateBorrowed).
		Vals(goqu.Vals{studentID, bookID, borrowedOn.Format(dateFormat)}).
		Returning(colID).
		ToSQL()

	return query, err
}

func (s BorrowStore) logError(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}
