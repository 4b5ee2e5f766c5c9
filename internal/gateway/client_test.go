package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslib/borrowsvc/internal/gateway"
)

func newRegistryServer(t *testing.T, knownPath string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == knownPath {
			w.WriteHeader(http.StatusOK)
			return
		}

		w.WriteHeader(http.StatusNotFound)
	}))

	t.Cleanup(server.Close)

	return server
}

func Test_Exists_True_WhenServiceReturns200(t *testing.T) {
	// arrange
	students := newRegistryServer(t, "/students/S1")
	books := newRegistryServer(t, "/books/B1")

	client, err := gateway.NewClient(students.URL, books.URL)
	require.NoError(t, err)

	// act
	studentExists, studentErr := client.Exists(context.Background(), gateway.KindStudent, "S1")
	bookExists, bookErr := client.Exists(context.Background(), gateway.KindBook, "B1")

	// assert
	require.NoError(t, studentErr)
	require.NoError(t, bookErr)
	assert.True(t, studentExists)
	assert.True(t, bookExists)
}

func Test_Exists_False_WhenServiceReturnsNon200(t *testing.T) {
	// arrange
	students := newRegistryServer(t, "/students/S1")
	books := newRegistryServer(t, "/books/B1")

	client, err := gateway.NewClient(students.URL, books.URL)
	require.NoError(t, err)

	// act
	exists, lookupErr := client.Exists(context.Background(), gateway.KindStudent, "S404")

	// assert - any non-success status means "does not exist", not an error
	require.NoError(t, lookupErr)
	assert.False(t, exists)
}

func Test_Exists_Error_WhenServiceUnreachable(t *testing.T) {
	// arrange - a server that is already closed
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	client, err := gateway.NewClient(deadURL, deadURL)
	require.NoError(t, err)

	// act
	exists, lookupErr := client.Exists(context.Background(), gateway.KindStudent, "S1")

	// assert - transport failure propagates so the caller can fail closed
	require.Error(t, lookupErr)
	assert.False(t, exists)
}

func Test_Exists_Error_WhenTimeoutExpires(t *testing.T) {
	// arrange - a server slower than the configured timeout
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(slow.Close)

	client, err := gateway.NewClient(slow.URL, slow.URL, gateway.WithRequestTimeout(20*time.Millisecond))
	require.NoError(t, err)

	// act
	exists, lookupErr := client.Exists(context.Background(), gateway.KindStudent, "S1")

	// assert
	require.Error(t, lookupErr)
	assert.False(t, exists)
}

func Test_Exists_Error_ForUnknownKind(t *testing.T) {
	// arrange
	server := newRegistryServer(t, "/students/S1")

	client, err := gateway.NewClient(server.URL, server.URL)
	require.NoError(t, err)

	// act
	_, lookupErr := client.Exists(context.Background(), gateway.Kind("librarian"), "L1")

	// assert
	assert.ErrorIs(t, lookupErr, gateway.ErrUnknownKind)
}

func Test_Exists_EscapesIdentifierInPath(t *testing.T) {
	// arrange
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client, err := gateway.NewClient(server.URL, server.URL)
	require.NoError(t, err)

	// act
	_, lookupErr := client.Exists(context.Background(), gateway.KindStudent, "S 1/x")

	// assert
	require.NoError(t, lookupErr)
	assert.Equal(t, "/students/S%201%2Fx", requestedPath)
}

func Test_NewClient_RejectsInvalidConfiguration(t *testing.T) {
	_, err := gateway.NewClient("", "http://book:5006")
	assert.ErrorIs(t, err, gateway.ErrEmptyBaseURL)

	_, err = gateway.NewClient("http://user:5002", "")
	assert.ErrorIs(t, err, gateway.ErrEmptyBaseURL)

	_, err = gateway.NewClient("http://user:5002", "http://book:5006", gateway.WithRequestTimeout(0))
	assert.Error(t, err)

	_, err = gateway.NewClient("http://user:5002", "http://book:5006", gateway.WithHTTPClient(nil))
	assert.Error(t, err)
}
