package core

import "time"

// BorrowRecord is the durable fact that a student borrowed a book.
// The identifier is assigned by the record store on creation and is immutable,
// as is BorrowedOn. ReturnedOn stays nil while the book is held; setting it
// is handled outside the borrow-request path.
type BorrowRecord struct {
	ID         int64
	StudentID  string
	BookID     string
	BorrowedOn time.Time
	ReturnedOn *time.Time
}

// IsActive reports whether the book is currently held, i.e. no return date is set.
func (r BorrowRecord) IsActive() bool {
	return r.ReturnedOn == nil
}

// DateOf truncates a timestamp to its UTC calendar date.
// Borrow and return dates are stored with day precision only.
func DateOf(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
