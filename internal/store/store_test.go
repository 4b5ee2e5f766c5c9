package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campuslib/borrowsvc/internal/store"
)

func Test_NewBorrowStoreFromPGXPool_RejectsNilPool(t *testing.T) {
	_, err := store.NewBorrowStoreFromPGXPool(nil)

	assert.ErrorIs(t, err, store.ErrNilDatabaseConnection)
}

func Test_NewBorrowStoreFromSQLX_RejectsNilDB(t *testing.T) {
	_, err := store.NewBorrowStoreFromSQLX(nil)

	assert.ErrorIs(t, err, store.ErrNilDatabaseConnection)
}
