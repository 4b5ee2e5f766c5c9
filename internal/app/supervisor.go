// Package app owns the concurrency boundary of the process: the background
// queue consumer and the foreground history API run as independent goroutines
// sharing the record store through its connection pool, started and stopped
// together by one supervisor.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultShutdownTimeout = 10 * time.Second

	logMsgServerStarting  = "http server starting"
	logMsgShuttingDown    = "shutting down"
	logMsgShutdownDone    = "shutdown complete"
	logMsgShutdownFailed  = "graceful shutdown failed"
	logMsgConsumerStopped = "consumer stopped"
	logAttrAddr           = "addr"
	logAttrError          = "error"
)

var (
	// ErrNilServer is returned when a supervisor is constructed without an HTTP server.
	ErrNilServer = errors.New("http server must not be nil")

	// ErrNilConsumer is returned when a supervisor is constructed without a consumer.
	ErrNilConsumer = errors.New("consumer must not be nil")
)

// Consumer defines the interface needed by the Supervisor to run the queue consumer loop.
type Consumer interface {
	Run(ctx context.Context) error
}

// Logger interface for lifecycle logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Supervisor starts the consumer loop and the HTTP server and coordinates
// their shutdown.
type Supervisor struct {
	server          *http.Server
	consumer        Consumer
	logger          Logger
	shutdownTimeout time.Duration
}

// Option defines a functional option for configuring Supervisor.
type Option func(*Supervisor) error

// WithLogger sets the logger for the Supervisor.
func WithLogger(logger Logger) Option {
	return func(s *Supervisor) error {
		s.logger = logger
		return nil
	}
}

// WithShutdownTimeout bounds how long the HTTP server may drain on shutdown.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Supervisor) error {
		if timeout <= 0 {
			return errors.New("shutdown timeout must be positive")
		}

		s.shutdownTimeout = timeout

		return nil
	}
}

// NewSupervisor creates a Supervisor for the given server and consumer.
func NewSupervisor(server *http.Server, consumer Consumer, options ...Option) (Supervisor, error) {
	if server == nil {
		return Supervisor{}, ErrNilServer
	}

	if consumer == nil {
		return Supervisor{}, ErrNilConsumer
	}

	s := Supervisor{
		server:          server,
		consumer:        consumer,
		shutdownTimeout: defaultShutdownTimeout,
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Supervisor{}, err
		}
	}

	return s, nil
}

// Run starts both lifecycles and blocks until the context is canceled or one
// of them fails. On cancellation it drains the HTTP server and stops the
// consumer, returning nil for a clean shutdown.
func (s Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failures := make(chan error, 2)

	go func() {
		if err := s.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			failures <- fmt.Errorf("consumer stopped: %w", err)
			return
		}

		if s.logger != nil {
			s.logger.Info(logMsgConsumerStopped)
		}

		failures <- nil
	}()

	go func() {
		if s.logger != nil {
			s.logger.Info(logMsgServerStarting, logAttrAddr, s.server.Addr)
		}

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failures <- fmt.Errorf("http server stopped: %w", err)
			return
		}

		failures <- nil
	}()

	var runErr error

	select {
	case <-ctx.Done():
	case runErr = <-failures:
	}

	cancel()

	if s.logger != nil {
		s.logger.Info(logMsgShuttingDown)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer shutdownCancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		if s.logger != nil {
			s.logger.Error(logMsgShutdownFailed, logAttrError, err.Error())
		}

		if runErr == nil {
			runErr = fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	if s.logger != nil {
		s.logger.Info(logMsgShutdownDone)
	}

	return runErr
}
