package app_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslib/borrowsvc/internal/app"
)

// blockingConsumer runs until its context is canceled, like the real consumer loop.
type blockingConsumer struct {
	started chan struct{}
}

func (c *blockingConsumer) Run(ctx context.Context) error {
	close(c.started)
	<-ctx.Done()

	return ctx.Err()
}

// failingConsumer fails immediately, simulating an unreachable broker.
type failingConsumer struct {
	err error
}

func (c *failingConsumer) Run(_ context.Context) error {
	return c.err
}

func newTestServer() *http.Server {
	return &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
}

func Test_Run_ShutsDownCleanly_OnContextCancellation(t *testing.T) {
	// arrange
	consumer := &blockingConsumer{started: make(chan struct{})}
	supervisor, err := app.NewSupervisor(newTestServer(), consumer, app.WithShutdownTimeout(time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- supervisor.Run(ctx)
	}()

	select {
	case <-consumer.started:
	case <-time.After(time.Second):
		t.Fatal("consumer was never started")
	}

	// act
	cancel()

	// assert - both lifecycles stop and Run reports a clean shutdown
	select {
	case runErr := <-done:
		assert.NoError(t, runErr)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not shut down")
	}
}

func Test_Run_ReturnsError_WhenConsumerFails(t *testing.T) {
	// arrange
	brokerErr := errors.New("dial tcp: connection refused")
	supervisor, err := app.NewSupervisor(newTestServer(), &failingConsumer{err: brokerErr}, app.WithShutdownTimeout(time.Second))
	require.NoError(t, err)

	// act
	runErr := supervisor.Run(context.Background())

	// assert
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, brokerErr)
}

func Test_NewSupervisor_RejectsMissingDependencies(t *testing.T) {
	consumer := &blockingConsumer{started: make(chan struct{})}

	_, err := app.NewSupervisor(nil, consumer)
	assert.ErrorIs(t, err, app.ErrNilServer)

	_, err = app.NewSupervisor(newTestServer(), nil)
	assert.ErrorIs(t, err, app.ErrNilConsumer)

	_, err = app.NewSupervisor(newTestServer(), consumer, app.WithShutdownTimeout(0))
	assert.Error(t, err)
}
