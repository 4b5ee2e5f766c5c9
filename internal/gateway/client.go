// Package gateway looks up students and books in the external registry services.
//
// Every borrow request is re-validated, there is no caching. A transport
// failure or timeout is returned as an error and must be treated as
// "not validated" by the caller (fail closed).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Kind selects which external service an existence check is performed against.
type Kind string

const (
	// KindStudent checks the student registry service.
	KindStudent Kind = "student"

	// KindBook checks the book catalog service.
	KindBook Kind = "book"
)

const (
	studentsPath = "/students/"
	booksPath    = "/books/"

	defaultRequestTimeout = 5 * time.Second
)

var (
	// ErrUnknownKind is returned when an existence check is requested for an unsupported kind.
	ErrUnknownKind = errors.New("unknown lookup kind")

	// ErrEmptyBaseURL is returned when a client is constructed without both service base URLs.
	ErrEmptyBaseURL = errors.New("service base URL must not be empty")
)

// Client performs synchronous existence checks against the student registry
// and the book catalog.
type Client struct {
	httpClient     *http.Client
	studentBaseURL string
	bookBaseURL    string
}

// Option defines a functional option for configuring Client.
type Option func(*Client) error

// WithRequestTimeout bounds every lookup request; expiry surfaces as a lookup error.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return errors.New("request timeout must be positive")
		}

		c.httpClient.Timeout = timeout

		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		if httpClient == nil {
			return errors.New("http client must not be nil")
		}

		c.httpClient = httpClient

		return nil
	}
}

// NewClient creates a validation gateway client for the given service base URLs.
func NewClient(studentBaseURL string, bookBaseURL string, options ...Option) (Client, error) {
	if studentBaseURL == "" || bookBaseURL == "" {
		return Client{}, ErrEmptyBaseURL
	}

	c := Client{
		httpClient:     &http.Client{Timeout: defaultRequestTimeout},
		studentBaseURL: studentBaseURL,
		bookBaseURL:    bookBaseURL,
	}

	for _, option := range options {
		if err := option(&c); err != nil {
			return Client{}, err
		}
	}

	return c, nil
}

// Exists reports whether the identified student or book is known to the
// corresponding external service. A 200 response means it exists, any other
// status means it does not. Transport failures and timeouts are returned as
// errors without retry.
func (c Client) Exists(ctx context.Context, kind Kind, id string) (bool, error) {
	lookupURL, err := c.lookupURL(kind, id)
	if err != nil {
		return false, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build %s lookup request: %w", kind, err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return false, fmt.Errorf("%s lookup for %q failed: %w", kind, id, err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	return response.StatusCode == http.StatusOK, nil
}

func (c Client) lookupURL(kind Kind, id string) (string, error) {
	switch kind {
	case KindStudent:
		return c.studentBaseURL + studentsPath + url.PathEscape(id), nil
	case KindBook:
		return c.bookBaseURL + booksPath + url.PathEscape(id), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
