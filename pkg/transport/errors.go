package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit open")

// StatusError is a non-2xx response.
type StatusError struct {
	URL  string
	Code int
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.URL, e.Code, e.Body)
}

// IsTransient reports whether err is worth retrying: network failures,
// timeouts, 429 and 5xx responses. Canceled contexts, open breakers and
// other client errors are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
