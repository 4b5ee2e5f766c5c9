package core

// DefaultBorrowLimit is the number of books a student may hold at the same time
// unless the limit is overridden through configuration.
const DefaultBorrowLimit = 5

const failureReasonLimitReached = "student has reached the borrow limit"

// Decision represents the outcome of applying the borrow limit policy.
//
// Decision values should only be constructed through Decide so that the
// reason text stays consistent across callers.
type Decision struct {
	admitted bool
	reason   string
}

// Admitted reports whether the borrow request may proceed to persistence.
func (d Decision) Admitted() bool {
	return d.admitted
}

// Reason returns the human-readable rejection reason, empty for admitted decisions.
func (d Decision) Reason() string {
	return d.reason
}

// Decide applies the borrowing limit to a fresh active-borrow count.
// This is a pure function with no side effects: it admits while the student
// currently holds fewer active borrows than the limit and rejects otherwise.
// Callers must obtain activeCount from the record store for every decision,
// never from a cache, since the count is the shared state the limit protects.
func Decide(activeCount int, limit int) Decision {
	if activeCount < limit {
		return Decision{admitted: true}
	}

	return Decision{admitted: false, reason: failureReasonLimitReached}
}
